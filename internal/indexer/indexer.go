package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/manifest"
	"github.com/hyperjump/agilerag/internal/models"
)

// Store is the collection the indexer writes units to.
type Store interface {
	Add(ctx context.Context, units []*models.RetrievalUnit) ([]string, error)
	Delete(ctx context.Context, ids []string) (bool, error)
	Clear(ctx context.Context) (bool, error)
}

// FileResult reports the outcome of ingesting one file.
type FileResult struct {
	Path    string
	Units   []*models.RetrievalUnit
	Skipped bool
}

// Indexer ingests files into a Store. With a manifest it skips files whose hash is unchanged
// and replaces the units of files that changed.
type Indexer struct {
	ingestor *Ingestor
	store    Store
	manifest *manifest.Manifest
	force    bool
	progress func(path string)
	logger   *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithManifest enables change tracking through m.
func WithManifest(m *manifest.Manifest) IndexerOption {
	return func(idx *Indexer) { idx.manifest = m }
}

// WithForce re-ingests files even when the manifest says they are unchanged.
func WithForce(force bool) IndexerOption {
	return func(idx *Indexer) { idx.force = force }
}

// WithProgress sets a callback invoked after each file of a directory ingest, whatever its outcome.
func WithProgress(fn func(path string)) IndexerOption {
	return func(idx *Indexer) { idx.progress = fn }
}

// WithIndexerLogger sets a logger for ingest and removal events.
func WithIndexerLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer that loads files with ingestor and stores units in store.
func NewIndexer(ingestor *Ingestor, store Store, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		ingestor: ingestor,
		store:    store,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingestor returns the ingestor used to load files.
func (idx *Indexer) Ingestor() *Ingestor { return idx.ingestor }

// IngestFile processes path and adds its units. An empty category is inferred from the path.
// When the manifest already holds the same file hash the file is skipped; when the hash
// differs the previous units are deleted after the new ones are stored.
func (idx *Indexer) IngestFile(ctx context.Context, path, category string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := idx.ingestor.Describe(path, category)
	if err != nil {
		return nil, err
	}
	result := &FileResult{Path: doc.Path}

	var prev *manifest.Entry
	if idx.manifest != nil {
		prev, err = idx.manifest.Get(doc.Path)
		switch {
		case errors.Is(err, models.ErrNotFound):
			prev = nil
		case err != nil:
			return nil, models.NewBackendError("read manifest", err)
		case !idx.force && prev.FileHash == doc.FileHash && (category == "" || category == prev.Category):
			idx.logger.Debug("skipping unchanged file", zap.String("path", doc.Path))
			result.Skipped = true
			return result, nil
		}
	}

	units, err := idx.ingestor.Process(doc.Path, doc.Category)
	if err != nil {
		return nil, err
	}
	var ids []string
	if len(units) > 0 {
		if ids, err = idx.store.Add(ctx, units); err != nil {
			return nil, err
		}
		for i, u := range units {
			u.ID = ids[i]
		}
	}
	if prev != nil && len(prev.UnitIDs) > 0 {
		if _, err := idx.store.Delete(ctx, prev.UnitIDs); err != nil {
			return nil, err
		}
	}
	if idx.manifest != nil {
		entry := manifest.Entry{
			Path:       doc.Path,
			FileHash:   doc.FileHash,
			Category:   doc.Category,
			UnitIDs:    ids,
			IngestedAt: time.Now().UTC(),
		}
		if err := idx.manifest.Put(entry); err != nil {
			return nil, models.NewBackendError("write manifest", err)
		}
	}
	result.Units = units
	idx.logger.Info("file ingested",
		zap.String("path", doc.Path),
		zap.String("category", doc.Category),
		zap.Int("units", len(units)),
		zap.Bool("replaced", prev != nil),
	)
	return result, nil
}

// IngestDirectory ingests every supported file under dir in parallel. Per-file failures are
// recorded in the report and never abort the batch.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, recursive bool) (*models.BatchReport, error) {
	return idx.ingestor.eachFile(ctx, dir, recursive, func(path string, item *models.ItemResult) {
		if idx.progress != nil {
			defer idx.progress(path)
		}
		res, err := idx.IngestFile(ctx, path, "")
		if err != nil {
			item.Err = err
			return
		}
		item.Units = res.Units
	})
}

// RemoveFile deletes the units recorded for path and forgets it. It returns the number of
// units removed; a path that was never ingested removes nothing.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	if idx.manifest == nil {
		return 0, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	entry, err := idx.manifest.Get(abs)
	if errors.Is(err, models.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, models.NewBackendError("read manifest", err)
	}
	if len(entry.UnitIDs) > 0 {
		if _, err := idx.store.Delete(ctx, entry.UnitIDs); err != nil {
			return 0, err
		}
	}
	if err := idx.manifest.Delete(abs); err != nil {
		return 0, models.NewBackendError("write manifest", err)
	}
	idx.logger.Info("file removed", zap.String("path", abs), zap.Int("units", len(entry.UnitIDs)))
	return len(entry.UnitIDs), nil
}

// Prune removes every manifest entry whose file no longer exists and returns the removed paths.
func (idx *Indexer) Prune(ctx context.Context) ([]string, error) {
	entries, err := idx.Documents()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if _, err := os.Stat(e.Path); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if _, err := idx.RemoveFile(ctx, e.Path); err != nil {
			return removed, err
		}
		removed = append(removed, e.Path)
	}
	return removed, nil
}

// Documents lists the ingested files recorded in the manifest.
func (idx *Indexer) Documents() ([]manifest.Entry, error) {
	if idx.manifest == nil {
		return nil, nil
	}
	entries, err := idx.manifest.List()
	if err != nil {
		return nil, models.NewBackendError("list manifest", err)
	}
	return entries, nil
}

// Clear removes every unit from the store and empties the manifest.
func (idx *Indexer) Clear(ctx context.Context) error {
	if _, err := idx.store.Clear(ctx); err != nil {
		return err
	}
	if idx.manifest != nil {
		if err := idx.manifest.Clear(); err != nil {
			return models.NewBackendError("clear manifest", err)
		}
	}
	return nil
}
