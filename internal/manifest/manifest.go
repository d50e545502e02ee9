// Package manifest records which source files are ingested into a collection, so unchanged
// files can be skipped and changed or removed files can have their units replaced.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hyperjump/agilerag/internal/fileid"
	"github.com/hyperjump/agilerag/internal/models"
)

// DBFile is the bbolt file created under the persist path.
const DBFile = "manifest.db"

const bucketPrefix = "documents:"

// Entry describes one ingested file.
type Entry struct {
	Path       string    `json:"path"`
	FileHash   string    `json:"file_hash"`
	Category   string    `json:"category"`
	UnitIDs    []string  `json:"unit_ids"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Manifest is a bbolt-backed map from source path to Entry, scoped to one collection.
type Manifest struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens or creates the manifest at persistPath/manifest.db for collection.
func Open(persistPath, collection string) (*Manifest, error) {
	if collection == "" {
		return nil, models.NewValidationError("collection_name", "must not be empty")
	}
	if err := os.MkdirAll(persistPath, 0755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(persistPath, DBFile), 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	m := &Manifest{db: db, bucket: []byte(bucketPrefix + collection)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(m.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create manifest bucket: %w", err)
	}
	return m, nil
}

// Get returns the entry for path, or an error wrapping models.ErrNotFound.
func (m *Manifest) Get(path string) (*Entry, error) {
	var entry *Entry
	err := m.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(m.bucket).Get(key(path))
		if data == nil {
			return fmt.Errorf("manifest entry %s: %w", path, models.ErrNotFound)
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put stores entry under entry.Path, replacing any previous entry.
func (m *Manifest) Put(entry Entry) error {
	if entry.Path == "" {
		return models.NewValidationError("path", "must not be empty")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(m.bucket).Put(key(entry.Path), data)
	})
}

// Delete removes the entry for path. Missing entries are ignored.
func (m *Manifest) Delete(path string) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(m.bucket).Delete(key(path))
	})
}

// List returns every entry ordered by path.
func (m *Manifest) List() ([]Entry, error) {
	var entries []Entry
	err := m.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(m.bucket).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("manifest entry %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// Clear removes every entry of the collection.
func (m *Manifest) Clear() error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(m.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(m.bucket)
		return err
	})
}

func key(path string) []byte {
	return []byte(fileid.SourceKey(path))
}

// Close closes the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}
