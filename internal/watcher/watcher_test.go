package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/agilerag/internal/embedding"
	"github.com/hyperjump/agilerag/internal/indexer"
	"github.com/hyperjump/agilerag/internal/manifest"
	"github.com/hyperjump/agilerag/internal/vector"
)

type recordingHandler struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (h *recordingHandler) IngestFile(_ context.Context, path, _ string) (*indexer.FileResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.indexed = append(h.indexed, path)
	return &indexer.FileResult{Path: path}, nil
}

func (h *recordingHandler) RemoveFile(_ context.Context, path string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, path)
	return 1, nil
}

func (h *recordingHandler) snapshot() (indexed, removed []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.indexed...), append([]string(nil), h.removed...)
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(nil, &recordingHandler{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	w := NewWatcher([]string{dir}, h, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(sub, "sprint.txt"), "Sprint goal"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "board.xlsx"), "ignored"); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		indexed, _ := h.snapshot()
		return hasSuffix(indexed, "sprint.txt")
	})
	if !ok {
		t.Fatal("expected sprint.txt to be ingested")
	}
	time.Sleep(100 * time.Millisecond)
	indexed, _ := h.snapshot()
	if hasSuffix(indexed, "board.xlsx") {
		t.Errorf("unsupported extension should be ignored, got %v", indexed)
	}
}

func TestWatcher_RemoveEventDeletesUnits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kanban.md")
	if err := writeFile(path, "# WIP\nLimit work in progress."); err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	w := NewWatcher([]string{dir}, h, WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		_, removed := h.snapshot()
		return hasSuffix(removed, "kanban.md")
	})
	if !ok {
		t.Error("expected remove callback for kanban.md")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestMatchIgnore(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"guide.pdf", false},
		{"scrum/guide.pdf", false},
		{".git/config", true},
		{"notes/.draft.md", true},
		{"notes/~$syllabus.docx", true},
		{"notes/guide.md.swp", true},
		{"notes/guide.md~", true},
	}
	for _, tt := range tests {
		if got := matchIgnore(tt.rel, DefaultIgnore); got != tt.want {
			t.Errorf("matchIgnore(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles_indexesMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := mkdirAll(filepath.Join(dir, ".cache")); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, ".cache", "b.txt"), "hidden"); err != nil {
		t.Fatal(err)
	}

	h := &recordingHandler{}
	w := NewWatcher([]string{dir}, h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	indexed, _ := h.snapshot()
	if len(indexed) != 1 || !strings.HasSuffix(indexed[0], "a.txt") {
		t.Errorf("expected one indexed file a.txt, got %v", indexed)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := NewWatcher([]string{root}, &recordingHandler{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_HandleNewDirectory_recursiveSubfolders(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	w := NewWatcher([]string{dir}, h, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, func() bool {
		indexed, _ := h.snapshot()
		return hasSuffix(indexed, "deep.txt")
	})
	if !ok {
		indexed, _ := h.snapshot()
		t.Errorf("expected deep.txt to be indexed, got %v", indexed)
	}
}

func TestWatcher_KeepsCollectionInSync(t *testing.T) {
	persist := t.TempDir()
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coll, err := vector.Open(ctx, "agile_knowledge", persist, embedding.NewHashingEmbedder(64))
	if err != nil {
		t.Fatal(err)
	}
	defer coll.Close()
	m, err := manifest.Open(persist, "agile_knowledge")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	chunker, err := indexer.NewChunker(200, 20)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(indexer.NewIngestor(chunker), coll, indexer.WithManifest(m))

	w := NewWatcher([]string{dir}, idx, WithDebounce(50*time.Millisecond))
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "review.txt")
	if err := writeFile(path, "The Sprint Review inspects the outcome of the Sprint."); err != nil {
		t.Fatal(err)
	}
	count := func() int {
		n, _ := coll.Count(ctx)
		return n
	}
	if !waitFor(t, func() bool { return count() == 1 }) {
		t.Fatalf("expected 1 unit after create, got %d", count())
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return count() == 0 }) {
		t.Fatalf("expected 0 units after remove, got %d", count())
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
