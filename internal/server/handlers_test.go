package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/config"
	"github.com/hyperjump/agilerag/internal/embedding"
	"github.com/hyperjump/agilerag/internal/indexer"
	"github.com/hyperjump/agilerag/internal/manifest"
	"github.com/hyperjump/agilerag/internal/models"
	"github.com/hyperjump/agilerag/internal/rag"
	"github.com/hyperjump/agilerag/internal/vector"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	return "generated answer", nil
}

func (echoGenerator) Name() string { return "echo" }

type failingAnswerer struct{ err error }

func (f failingAnswerer) Query(context.Context, models.QueryRequest) (*models.Answer, error) {
	return nil, f.err
}
func (failingAnswerer) Provider() string    { return "none" }
func (failingAnswerer) SearchEnabled() bool { return false }

type fixture struct {
	srv     *Server
	handler http.Handler
	coll    *vector.Collection
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.PersistPath = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	ctx := context.Background()
	coll, err := vector.Open(ctx, cfg.Storage.CollectionName, cfg.Storage.PersistPath, embedding.NewHashingEmbedder(128))
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })
	m, err := manifest.Open(cfg.Storage.PersistPath, cfg.Storage.CollectionName)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	chunker, err := indexer.NewChunker(200, 20)
	require.NoError(t, err)
	idx := indexer.NewIndexer(indexer.NewIngestor(chunker), coll, indexer.WithManifest(m))
	orch, err := rag.New(coll, echoGenerator{})
	require.NoError(t, err)

	srv := NewServer(orch, coll, idx, cfg, zap.NewNop(), WithVersion("test"), WithProviders([]string{"echo"}))
	return &fixture{srv: srv, handler: srv.Handler(), coll: coll}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func (f *fixture) upload(t *testing.T, name, content, category string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if category != "" {
		require.NoError(t, mw.WriteField("category", category))
	}
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return f.do(t, http.MethodPost, "/api/v1/documents", buf.Bytes(), mw.FormDataContentType())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "test", out["version"])
	assert.Equal(t, "echo", out["llm_provider"])
	assert.Equal(t, false, out["search_enabled"])
	assert.EqualValues(t, 0, out["units"])
}

func TestHandleUploadAndQuery(t *testing.T) {
	f := newFixture(t, nil)

	w := f.upload(t, "retro.txt", "The Sprint Retrospective plans ways to increase quality and effectiveness.", "scrum")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode(t, w)
	assert.EqualValues(t, 1, out["units"])
	assert.Equal(t, "scrum", out["category"])

	body := []byte(`{"question":"What does the Sprint Retrospective plan?","return_sources":true}`)
	w = f.do(t, http.MethodPost, "/api/v1/query", body, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ans models.Answer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ans))
	assert.Equal(t, "generated answer", ans.Answer)
	assert.Equal(t, 1, ans.NumSources)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, "retro.txt", ans.Citations[0].SourceDocument)
	assert.Equal(t, "retro.txt", ans.Sources[0].Metadata[models.KeySourcePath])
}

func TestHandleQuery_BadRequests(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"question":`},
		{"unknown field", `{"question":"hi","limit":3}`},
		{"missing question", `{"k":3}`},
		{"blank question", `{"question":"   "}`},
		{"k too large", `{"question":"What is Kanban?","k":500}`},
		{"bad history role", `{"question":"What is Kanban?","history":[{"role":"coach","content":"x"}]}`},
		{"non-scalar filter", `{"question":"What is Kanban?","filter":{"page":[1,2]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/query", []byte(tt.body), "application/json")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestHandleQuery_EmptyCollection(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/api/v1/query", []byte(`{"question":"What is a Sprint?"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rag.InsufficientKnowledgeMessage, decode(t, w)["answer"])
}

func TestHandleQuery_BackendErrorIs500(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	coll, err := vector.Open(context.Background(), "c", t.TempDir(), embedding.NewHashingEmbedder(16))
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })
	srv := NewServer(failingAnswerer{err: models.NewBackendError("scan units", errors.New("disk"))}, coll, nil, cfg, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleUpload_Errors(t *testing.T) {
	f := newFixture(t, nil)

	w := f.upload(t, "backlog.xlsx", "not really a spreadsheet", "")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = f.upload(t, "notes.txt", "Kanban", "astrology")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/documents", []byte("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDeleteUnits(t *testing.T) {
	f := newFixture(t, nil)
	w := f.upload(t, "kanban.md", "# Flow\nKanban visualizes work and limits work in progress.", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ids := decode(t, w)["ids"].([]interface{})
	require.Len(t, ids, 1)

	w = f.do(t, http.MethodDelete, "/api/v1/units", []byte(`{"ids":[]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/units", []byte(`{"ids":["missing"]}`), "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body, _ := json.Marshal(map[string]interface{}{"ids": []interface{}{ids[0], "missing"}})
	w = f.do(t, http.MethodDelete, "/api/v1/units", body, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["deleted"])

	n, err := f.coll.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleStatusListAndClear(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.upload(t, "a.txt", "Scrum has three accountabilities.", "").Code)

	w := f.do(t, http.MethodGet, "/api/v1/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.EqualValues(t, 1, out["units"])
	assert.Equal(t, "hashing-128", out["embedding_model"])
	assert.Contains(t, out, "config")

	w = f.do(t, http.MethodGet, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "documents")

	w = f.do(t, http.MethodDelete, "/api/v1/collection", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	n, err := f.coll.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Server.RateLimitPerMinute = 1 })
	w := f.do(t, http.MethodGet, "/api/v1/status", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/status", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code, "health is not rate limited")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewValidationError("k", "bad"), http.StatusBadRequest},
		{&models.FormatError{Path: "x.xlsx", Ext: ".xlsx"}, http.StatusUnsupportedMediaType},
		{models.ErrNotFound, http.StatusNotFound},
		{models.NewBackendError("op", errors.New("x")), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
