package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/agilerag/internal/models"
)

// SQLiteStorage implements Store using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		embedding_model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_units_collection_seq ON units(collection, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// GetCollection returns the collection binding, or an error wrapping models.ErrNotFound.
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	var info CollectionInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT name, embedding_model, dimensions, created_at FROM collections WHERE name = ?`, name,
	).Scan(&info.Name, &info.EmbeddingModel, &info.Dimensions, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateCollection records a new collection binding.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, info *CollectionInfo) error {
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, embedding_model, dimensions, created_at) VALUES (?, ?, ?, ?)`,
		info.Name, info.EmbeddingModel, info.Dimensions, info.CreatedAt,
	)
	return err
}

// InsertUnits inserts units in a single transaction; either all are stored or none.
func (s *SQLiteStorage) InsertUnits(ctx context.Context, collection string, units []UnitRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO units (id, collection, seq, content, metadata, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, u := range units {
		md, err := encodeMetadata(u.Metadata)
		if err != nil {
			return fmt.Errorf("unit %s: %w", u.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, u.ID, collection, u.Seq, u.Content, md, EncodeVector(u.Embedding), now); err != nil {
			return fmt.Errorf("insert unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteUnits removes the given IDs from collection and returns how many rows went away.
func (s *SQLiteStorage) DeleteUnits(ctx context.Context, collection string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM units WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearUnits removes every unit of collection; the collection binding stays.
func (s *SQLiteStorage) ClearUnits(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE collection = ?`, collection)
	return err
}

// ScanUnits calls fn for every unit of collection in insertion order. A row that cannot be
// decoded stops the scan with an error naming the unit.
func (s *SQLiteStorage) ScanUnits(ctx context.Context, collection string, fn func(UnitRecord) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, content, metadata, embedding FROM units WHERE collection = ? ORDER BY seq`,
		collection,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec UnitRecord
		var md string
		var blob []byte
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Content, &md, &blob); err != nil {
			return err
		}
		if rec.Metadata, err = decodeMetadata(md); err != nil {
			return fmt.Errorf("unit %s: %w", rec.ID, err)
		}
		if rec.Embedding, err = DecodeVector(blob); err != nil {
			return fmt.Errorf("unit %s: %w", rec.ID, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountUnits returns the number of units in collection.
func (s *SQLiteStorage) CountUnits(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
