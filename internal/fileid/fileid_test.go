package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSourceKey(t *testing.T) {
	k1 := SourceKey("/foo/bar.txt")
	k2 := SourceKey("/foo/./bar.txt")
	if k1 != k2 {
		t.Errorf("paths should normalize to the same key: %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, prefix) {
		t.Errorf("key should have prefix %q: got %q", prefix, k1)
	}
	if SourceKey("/foo/baz.txt") == k1 {
		t.Error("different paths should give different keys")
	}
}

func TestSourceKey_relativeBecomesAbsolute(t *testing.T) {
	abs, _ := filepath.Abs("a/b.txt")
	if SourceKey("a/b.txt") != prefix+abs {
		t.Errorf("relative path key = %q", SourceKey("a/b.txt"))
	}
}

func TestFileHash(t *testing.T) {
	a := FileHash([]byte("sprint review"))
	if a != FileHash([]byte("sprint review")) {
		t.Error("hash should be deterministic")
	}
	if a == FileHash([]byte("sprint planning")) {
		t.Error("different content should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hex sha256 should be 64 chars, got %d", len(a))
	}
}

func TestHashFile_matchesFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	content := []byte("Daily Scrum is a 15-minute event.")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != FileHash(content) {
		t.Errorf("HashFile = %s, FileHash = %s", got, FileHash(content))
	}
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash("x") != ContentHash("x") {
		t.Error("content hash should be deterministic")
	}
	if len(ContentHash("x")) != 16 {
		t.Errorf("content hash length = %d", len(ContentHash("x")))
	}
}
