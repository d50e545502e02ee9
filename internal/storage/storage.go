// Package storage persists collections and their retrieval units.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/agilerag/internal/models"
)

// CollectionInfo is the persisted binding of a collection to its embedding model.
type CollectionInfo struct {
	Name           string
	EmbeddingModel string
	Dimensions     int
	CreatedAt      time.Time
}

// UnitRecord is one stored retrieval unit with its embedding. Seq orders units by insertion.
type UnitRecord struct {
	ID        string
	Seq       int64
	Content   string
	Metadata  models.Metadata
	Embedding []float32
}

// Store defines collection and unit persistence operations.
type Store interface {
	// Collection operations
	GetCollection(ctx context.Context, name string) (*CollectionInfo, error)
	CreateCollection(ctx context.Context, info *CollectionInfo) error

	// Unit operations
	InsertUnits(ctx context.Context, collection string, units []UnitRecord) error
	DeleteUnits(ctx context.Context, collection string, ids []string) (int64, error)
	ClearUnits(ctx context.Context, collection string) error
	ScanUnits(ctx context.Context, collection string, fn func(UnitRecord) error) error

	// Stats
	CountUnits(ctx context.Context, collection string) (int64, error)

	Close() error
}
