package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/agilerag/internal/embedding"
	"github.com/hyperjump/agilerag/internal/models"
)

func unit(content, source, category string, extra models.Metadata) *models.RetrievalUnit {
	md := extra.Clone()
	md[models.KeySourceFile] = source
	md[models.KeyCategory] = category
	return &models.RetrievalUnit{Content: content, Metadata: md}
}

func openTest(t *testing.T, dir string, e embedding.Embedder) *Collection {
	t.Helper()
	c, err := Open(context.Background(), "agile_knowledge", dir, e)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type failingEmbedder struct{ *embedding.HashingEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func TestCollection_AddSearchDelete(t *testing.T) {
	ctx := context.Background()
	c := openTest(t, t.TempDir(), embedding.NewHashingEmbedder(128))

	ids, err := c.Add(ctx, []*models.RetrievalUnit{
		unit("The Daily Scrum is a fifteen minute event for the Developers.", "scrum.pdf", "scrum", models.Metadata{"page": 1}),
		unit("Kanban limits work in progress to improve flow.", "kanban.md", "kanban", nil),
		{ID: "fixed", Content: "The Sprint Retrospective plans ways to increase quality.", Metadata: models.Metadata{
			models.KeySourceFile: "scrum.pdf", models.KeyCategory: "scrum", "page": 2,
		}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "fixed", ids[2])
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := c.SearchWithScores(ctx, "sprint retrospective quality", 2, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "fixed", res[0].Unit.ID)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)

	units, err := c.Search(ctx, "work in progress", 5, models.Metadata{models.KeyCategory: "scrum", "page": 1.0})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, ids[0], units[0].ID)

	got, err := c.Get(ctx, []string{"never-existed", "fixed"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fixed", got[0].ID)

	ok, err := c.Delete(ctx, []string{"fixed", "never-existed"})
	require.NoError(t, err)
	assert.True(t, ok)
	n, _ = c.Count(ctx)
	assert.Equal(t, 2, n)
}

func TestCollection_SearchValidation(t *testing.T) {
	c := openTest(t, t.TempDir(), embedding.NewHashingEmbedder(16))
	ctx := context.Background()

	_, err := c.Search(ctx, "scrum", 0, nil)
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = c.Search(ctx, "scrum", 3, models.Metadata{"tags": []string{"a"}})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestCollection_EmptySearchSkipsEmbedding(t *testing.T) {
	c := openTest(t, t.TempDir(), failingEmbedder{embedding.NewHashingEmbedder(16)})
	res, err := c.SearchWithScores(context.Background(), "anything", 3, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestCollection_AddRejectsMissingMetadata(t *testing.T) {
	c := openTest(t, t.TempDir(), embedding.NewHashingEmbedder(16))
	_, err := c.Add(context.Background(), []*models.RetrievalUnit{{Content: "orphan", Metadata: models.Metadata{}}})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestCollection_EmbeddingFailureStoresNothing(t *testing.T) {
	c := openTest(t, t.TempDir(), failingEmbedder{embedding.NewHashingEmbedder(16)})
	_, err := c.Add(context.Background(), []*models.RetrievalUnit{unit("text", "a.txt", "general", nil)})
	assert.True(t, errors.Is(err, models.ErrBackend))
	n, _ := c.Count(context.Background())
	assert.Zero(t, n)
}

func TestCollection_PersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	e := embedding.NewHashingEmbedder(64)

	c, err := Open(ctx, "agile_knowledge", dir, e)
	require.NoError(t, err)
	_, err = c.Add(ctx, []*models.RetrievalUnit{
		unit("Scrum has three accountabilities.", "scrum.pdf", "scrum", models.Metadata{"page": 4}),
		unit("Kanban boards show flow.", "kanban.md", "kanban", nil),
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Count(ctx)
	assert.True(t, errors.Is(err, models.ErrBackend), "closed handle")

	c = openTest(t, dir, e)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	res, err := c.Search(ctx, "scrum accountabilities", 1, models.Metadata{"page": 4})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 4, res[0].Metadata["page"])

	ids, err := c.Add(ctx, []*models.RetrievalUnit{unit("Scrum again.", "scrum2.pdf", "scrum", nil)})
	require.NoError(t, err)
	all, err := c.Search(ctx, "?", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, ids[0], all[2].ID, "sequence continues after reopen")
}

func TestCollection_ModelMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(context.Background(), "agile_knowledge", dir, embedding.NewHashingEmbedder(64))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Open(context.Background(), "agile_knowledge", dir, embedding.NewHashingEmbedder(32))
	assert.True(t, errors.Is(err, models.ErrValidation))

	other, err := Open(context.Background(), "agile_knowledge_32", dir, embedding.NewHashingEmbedder(32))
	require.NoError(t, err)
	assert.Equal(t, "hashing-32", other.ModelID())
	_ = other.Close()
}

func TestCollection_CorruptRowFailsOpen(t *testing.T) {
	for name, stmt := range map[string]string{
		"metadata": `UPDATE units SET metadata = '{broken'`,
		"vector":   `UPDATE units SET embedding = X'0000803F'`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			e := embedding.NewHashingEmbedder(16)
			c, err := Open(context.Background(), "agile_knowledge", dir, e)
			require.NoError(t, err)
			_, err = c.Add(context.Background(), []*models.RetrievalUnit{unit("text", "a.txt", "general", nil)})
			require.NoError(t, err)
			require.NoError(t, c.Close())

			db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile))
			require.NoError(t, err)
			_, err = db.Exec(stmt)
			require.NoError(t, err)
			require.NoError(t, db.Close())

			_, err = Open(context.Background(), "agile_knowledge", dir, e)
			assert.True(t, errors.Is(err, models.ErrBackend), "got %v", err)
		})
	}
}

func TestCollection_ClearKeepsBinding(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	c := openTest(t, dir, embedding.NewHashingEmbedder(16))
	_, err := c.Add(ctx, []*models.RetrievalUnit{unit("text", "a.txt", "general", nil)})
	require.NoError(t, err)

	ok, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	n, _ := c.Count(ctx)
	assert.Zero(t, n)

	_, err = c.Add(ctx, []*models.RetrievalUnit{unit("more text", "b.txt", "general", nil)})
	require.NoError(t, err)
	n, _ = c.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestCollection_ConcurrentSearchAndClear(t *testing.T) {
	ctx := context.Background()
	c := openTest(t, t.TempDir(), embedding.NewHashingEmbedder(32))
	var units []*models.RetrievalUnit
	for i := 0; i < 20; i++ {
		units = append(units, unit(fmt.Sprintf("sprint note number %d", i), "notes.txt", "scrum", nil))
	}
	_, err := c.Add(ctx, units)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				res, err := c.Search(ctx, "sprint note", 5, nil)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(res), 5)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Clear(ctx)
		assert.NoError(t, err)
	}()
	wg.Wait()
}
