package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/config"
	"github.com/hyperjump/agilerag/internal/embedding"
	"github.com/hyperjump/agilerag/internal/indexer"
	"github.com/hyperjump/agilerag/internal/llm"
	"github.com/hyperjump/agilerag/internal/manifest"
	"github.com/hyperjump/agilerag/internal/rag"
	"github.com/hyperjump/agilerag/internal/vector"
	"github.com/hyperjump/agilerag/internal/websearch"
)

// Components holds initialized services.
type Components struct {
	Embedder   embedding.Embedder
	Collection *vector.Collection
	Manifest   *manifest.Manifest
	Indexer    *indexer.Indexer
}

// Close releases the collection, manifest, and embedder.
func (c *Components) Close() {
	if c.Collection != nil {
		_ = c.Collection.Close()
	}
	if c.Manifest != nil {
		_ = c.Manifest.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, idxOpts ...indexer.IndexerOption) (*Components, error) {
	embedder, err := embedding.New(embedding.Config{
		Model:      cfg.Embedding.Model,
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Embedder: embedder}

	coll, err := vector.Open(ctx, cfg.Storage.CollectionName, cfg.Storage.PersistPath, embedder, vector.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	c.Collection = coll

	m, err := manifest.Open(cfg.Storage.PersistPath, cfg.Storage.CollectionName)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	c.Manifest = m

	chunker, err := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, err
	}
	ingestor := indexer.NewIngestor(chunker, indexer.WithWorkers(cfg.Ingest.Workers), indexer.WithLogger(logger))
	opts := append([]indexer.IndexerOption{indexer.WithManifest(m), indexer.WithIndexerLogger(logger)}, idxOpts...)
	c.Indexer = indexer.NewIndexer(ingestor, coll, opts...)

	logger.Debug("components initialized",
		zap.String("collection", coll.Name()),
		zap.String("embedding_model", coll.ModelID()),
		zap.String("persist_path", cfg.Storage.PersistPath),
	)
	return c, nil
}

// newGenerator builds the configured generation backend. provider overrides llm.provider when set.
func newGenerator(cfg *config.Config, provider string) (llm.Generator, error) {
	opts := llm.Options{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}
	if provider != "" && provider != cfg.LLM.Provider {
		// model, key, and endpoint in the file belong to the configured provider
		other := config.Config{LLM: config.LLMConfig{Provider: provider}}
		opts.Model, opts.BaseURL = "", ""
		opts.APIKey = other.LLMAPIKey(getenv)
	} else {
		provider = cfg.LLM.Provider
	}
	gen, err := llm.DefaultRegistry().New(provider, opts)
	if err != nil {
		return nil, err
	}
	return llm.RateLimited(gen, cfg.LLM.RateLimitPerMinute), nil
}

func newOrchestrator(cfg *config.Config, coll *vector.Collection, gen llm.Generator, logger *zap.Logger) (*rag.Orchestrator, error) {
	opts := []rag.Option{
		rag.WithTopK(cfg.RAG.TopK),
		rag.WithMaxContextChars(cfg.RAG.MaxContextChars),
		rag.WithMinScore(cfg.RAG.MinScore),
		rag.WithMaxHistory(cfg.RAG.MaxHistory),
		rag.WithLogger(logger),
	}
	if cfg.RAG.PromptTemplate != "" {
		opts = append(opts, rag.WithPromptTemplate(cfg.RAG.PromptTemplate))
	}
	if cfg.Search.Enabled {
		backend, err := websearch.New(websearch.Config{
			Provider:   cfg.Search.Provider,
			TavilyKey:  cfg.Search.TavilyAPIKey,
			SerperKey:  cfg.Search.SerperAPIKey,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web search: %w", err)
		}
		opts = append(opts, rag.WithSearchBackend(backend))
	}
	return rag.New(coll, gen, opts...)
}
