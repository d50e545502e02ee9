package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/embedding"
	"github.com/hyperjump/agilerag/internal/metadata"
	"github.com/hyperjump/agilerag/internal/models"
	"github.com/hyperjump/agilerag/internal/storage"
)

// DBFile is the SQLite file created under a collection's persist path.
const DBFile = "collections.db"

var errClosed = errors.New("collection is closed")

// Collection is a named, persistent set of retrieval units bound to one embedding model.
// Units live in SQLite and are mirrored in a MemoryIndex for search. Search holds the read
// lock; Add, Delete, and Clear hold the write lock.
type Collection struct {
	name     string
	store    storage.Store
	embedder embedding.Embedder
	index    *MemoryIndex
	units    map[string]*models.RetrievalUnit
	nextSeq  int64
	logger   *zap.Logger
	closed   bool
	mu       sync.RWMutex
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the collection logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// Open opens or creates collection name under persistPath. The first open records the
// embedder's model ID and dimensions; later opens with a different embedder fail with a
// ValidationError. A stored row that cannot be decoded fails the open with a BackendError.
func Open(ctx context.Context, name, persistPath string, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	if persistPath == "" {
		return nil, models.NewValidationError("persist_path", "must not be empty")
	}
	if err := os.MkdirAll(persistPath, 0755); err != nil {
		return nil, models.NewBackendError("create persist directory", err)
	}
	store, err := storage.NewSQLiteStorage(filepath.Join(persistPath, DBFile))
	if err != nil {
		return nil, models.NewBackendError("open collection store", err)
	}
	c, err := OpenStore(ctx, name, store, embedder, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return c, nil
}

// OpenStore is Open over an existing store. The collection takes ownership of store.
func OpenStore(ctx context.Context, name string, store storage.Store, embedder embedding.Embedder, opts ...Option) (*Collection, error) {
	if name == "" {
		return nil, models.NewValidationError("collection_name", "must not be empty")
	}
	if embedder == nil {
		return nil, models.NewValidationError("embedder", "must not be nil")
	}
	index, err := NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, models.NewValidationError("embedder", err.Error())
	}
	c := &Collection{
		name:     name,
		store:    store,
		embedder: embedder,
		index:    index,
		units:    make(map[string]*models.RetrievalUnit),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.bind(ctx); err != nil {
		return nil, err
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("collection opened",
		zap.String("name", name),
		zap.String("embedding_model", embedder.ModelID()),
		zap.Int("units", index.Size()),
	)
	return c, nil
}

func (c *Collection) bind(ctx context.Context) error {
	info, err := c.store.GetCollection(ctx, c.name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		info = &storage.CollectionInfo{
			Name:           c.name,
			EmbeddingModel: c.embedder.ModelID(),
			Dimensions:     c.embedder.Dimensions(),
		}
		if err := c.store.CreateCollection(ctx, info); err != nil {
			return models.NewBackendError("create collection", err)
		}
		return nil
	case err != nil:
		return models.NewBackendError("read collection", err)
	}
	if info.EmbeddingModel != c.embedder.ModelID() || info.Dimensions != c.embedder.Dimensions() {
		return models.NewValidationError("embedding_model", fmt.Sprintf(
			"collection %q was built with %s (%d dims) but the embedder is %s (%d dims); use a new collection name",
			c.name, info.EmbeddingModel, info.Dimensions, c.embedder.ModelID(), c.embedder.Dimensions()))
	}
	return nil
}

func (c *Collection) load(ctx context.Context) error {
	dims := c.index.Dimensions()
	err := c.store.ScanUnits(ctx, c.name, func(rec storage.UnitRecord) error {
		if len(rec.Embedding) != dims {
			return fmt.Errorf("unit %s: vector has %d dimensions, want %d", rec.ID, len(rec.Embedding), dims)
		}
		if err := c.index.Add([]string{rec.ID}, [][]float32{rec.Embedding}); err != nil {
			return err
		}
		c.units[rec.ID] = &models.RetrievalUnit{ID: rec.ID, Content: rec.Content, Metadata: rec.Metadata}
		if rec.Seq >= c.nextSeq {
			c.nextSeq = rec.Seq + 1
		}
		return nil
	})
	if err != nil {
		return models.NewBackendError("load collection "+c.name, err)
	}
	return nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// ModelID returns the embedding model the collection is bound to.
func (c *Collection) ModelID() string { return c.embedder.ModelID() }

// Add embeds and stores units, returning their IDs in input order. Units without an ID get a
// UUID. Every unit must carry the required metadata. Embedding happens before the write lock is
// taken; an embedding or storage failure stores nothing.
func (c *Collection) Add(ctx context.Context, units []*models.RetrievalUnit) ([]string, error) {
	if len(units) == 0 {
		return []string{}, nil
	}
	texts := make([]string, len(units))
	for i, u := range units {
		if err := metadata.Check(u); err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		texts[i] = u.Content
	}
	if err := c.checkOpen("add"); err != nil {
		return nil, err
	}

	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, asBackend("embed units", err)
	}
	if len(vecs) != len(units) {
		return nil, models.NewBackendError("embed units", fmt.Errorf("got %d vectors for %d units", len(vecs), len(units)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, models.NewBackendError("add", errClosed)
	}
	ids := make([]string, len(units))
	records := make([]storage.UnitRecord, len(units))
	for i, u := range units {
		id := u.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		records[i] = storage.UnitRecord{
			ID:        id,
			Seq:       c.nextSeq + int64(i),
			Content:   u.Content,
			Metadata:  u.Metadata.Clone(),
			Embedding: vecs[i],
		}
	}
	if err := c.store.InsertUnits(ctx, c.name, records); err != nil {
		return nil, models.NewBackendError("store units", err)
	}
	if err := c.index.Add(ids, vecs); err != nil {
		return nil, models.NewBackendError("index units", err)
	}
	for _, rec := range records {
		c.units[rec.ID] = &models.RetrievalUnit{ID: rec.ID, Content: rec.Content, Metadata: rec.Metadata}
	}
	c.nextSeq += int64(len(records))
	c.logger.Debug("units added", zap.String("collection", c.name), zap.Int("count", len(ids)))
	return ids, nil
}

// Search returns the k units most similar to query that match filter.
func (c *Collection) Search(ctx context.Context, query string, k int, filter models.Metadata) ([]*models.RetrievalUnit, error) {
	scored, err := c.SearchWithScores(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*models.RetrievalUnit, len(scored))
	for i, s := range scored {
		out[i] = s.Unit
	}
	return out, nil
}

// SearchWithScores ranks units by cosine similarity to query, highest first, with ties in
// insertion order. filter is applied before the top-k cut. An empty collection returns an
// empty result without calling the embedder.
func (c *Collection) SearchWithScores(ctx context.Context, query string, k int, filter models.Metadata) ([]models.ScoredUnit, error) {
	if k <= 0 {
		return nil, models.NewValidationError("k", "must be positive")
	}
	if err := metadata.ValidateFilter(filter); err != nil {
		return nil, err
	}
	if err := c.checkOpen("search"); err != nil {
		return nil, err
	}
	if c.index.Size() == 0 {
		return []models.ScoredUnit{}, nil
	}

	qv, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, asBackend("embed query", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, models.NewBackendError("search", errClosed)
	}
	var keep func(string) bool
	if len(filter) > 0 {
		keep = func(id string) bool {
			u, ok := c.units[id]
			return ok && metadata.Matches(u.Metadata, filter)
		}
	}
	hits, err := c.index.Search(qv, k, keep)
	if err != nil {
		return nil, models.NewBackendError("search", err)
	}
	out := make([]models.ScoredUnit, 0, len(hits))
	for _, h := range hits {
		if u, ok := c.units[h.ID]; ok {
			out = append(out, models.ScoredUnit{Unit: u.Clone(), Score: h.Score})
		}
	}
	return out, nil
}

// Get returns copies of the stored units with the given IDs, in argument order. Unknown IDs are skipped.
func (c *Collection) Get(ctx context.Context, ids []string) ([]*models.RetrievalUnit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, models.NewBackendError("get", errClosed)
	}
	out := make([]*models.RetrievalUnit, 0, len(ids))
	for _, id := range ids {
		if u, ok := c.units[id]; ok {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

// Delete removes the units with the given IDs. Unknown IDs are ignored.
func (c *Collection) Delete(ctx context.Context, ids []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, models.NewBackendError("delete", errClosed)
	}
	if len(ids) == 0 {
		return true, nil
	}
	if _, err := c.store.DeleteUnits(ctx, c.name, ids); err != nil {
		return false, models.NewBackendError("delete units", err)
	}
	removed := c.index.Remove(ids)
	for _, id := range ids {
		delete(c.units, id)
	}
	c.logger.Debug("units deleted", zap.String("collection", c.name), zap.Int("count", removed))
	return true, nil
}

// Count returns the number of stored units.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if err := c.checkOpen("count"); err != nil {
		return 0, err
	}
	return c.index.Size(), nil
}

// Clear removes every unit. The collection keeps its embedding model binding.
func (c *Collection) Clear(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, models.NewBackendError("clear", errClosed)
	}
	c.logger.Warn("clearing collection", zap.String("name", c.name), zap.Int("units", c.index.Size()))
	if err := c.store.ClearUnits(ctx, c.name); err != nil {
		return false, models.NewBackendError("clear collection", err)
	}
	c.index.Reset()
	c.units = make(map[string]*models.RetrievalUnit)
	c.nextSeq = 0
	return true, nil
}

// Close releases the store. Later calls on the collection fail with a BackendError.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Collection) checkOpen(op string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return models.NewBackendError(op, errClosed)
	}
	return nil
}

func asBackend(op string, err error) error {
	if errors.Is(err, models.ErrBackend) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return models.NewBackendError(op, err)
}
