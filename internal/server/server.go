// Package server provides the HTTP API for the Agile knowledge assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/agilerag/internal/config"
	"github.com/hyperjump/agilerag/internal/indexer"
	"github.com/hyperjump/agilerag/internal/models"
)

const requestTimeout = 120 * time.Second

// maxUploadBytes bounds the buffered multipart body.
const maxUploadBytes = 64 << 20

// Answerer answers questions over the collection.
type Answerer interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.Answer, error)
	Provider() string
	SearchEnabled() bool
}

// Collection is the subset of the vector collection the API touches directly.
type Collection interface {
	Name() string
	ModelID() string
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, units []*models.RetrievalUnit) ([]string, error)
	Get(ctx context.Context, ids []string) ([]*models.RetrievalUnit, error)
	Delete(ctx context.Context, ids []string) (bool, error)
}

// Server is the HTTP server for the API.
type Server struct {
	answerer   Answerer
	collection Collection
	indexer    *indexer.Indexer
	config     *config.Config
	logger     *zap.Logger
	validate   *validator.Validate
	limiter    *rate.Limiter
	version    string
	providers  []string
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithProviders sets the generation backends reported by /health.
func WithProviders(names []string) Option {
	return func(s *Server) { s.providers = names }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	answerer Answerer,
	collection Collection,
	idx *indexer.Indexer,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		answerer:   answerer,
		collection: collection,
		indexer:    idx,
		config:     cfg,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		version:    "dev",
	}
	if perMinute := cfg.Server.RateLimitPerMinute; perMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/status", s.handleStatus)
		r.Post("/query", s.handleQuery)
		r.Post("/documents", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/units", s.handleDeleteUnits)
		r.Delete("/collection", s.handleClear)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
