// Package rag answers questions by retrieving units from a collection and grounding a
// generated answer in them.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/llm"
	"github.com/hyperjump/agilerag/internal/metadata"
	"github.com/hyperjump/agilerag/internal/models"
	"github.com/hyperjump/agilerag/internal/websearch"
)

// Defaults.
const (
	DefaultTopK            = 5
	DefaultMaxContextChars = 4000
)

// Retriever ranks stored units against a query.
type Retriever interface {
	SearchWithScores(ctx context.Context, query string, k int, filter models.Metadata) ([]models.ScoredUnit, error)
}

// Orchestrator runs retrieve, assemble, generate, and attribute for a question.
type Orchestrator struct {
	index           Retriever
	gen             llm.Generator
	topK            int
	maxContextChars int
	maxHistory      int
	minScore        float64
	template        string
	search          websearch.Backend
	registry        *metadata.Registry
	logger          *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTopK sets the number of units retrieved when a request leaves k unset.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithMaxContextChars bounds the assembled context; <= 0 disables the bound.
func WithMaxContextChars(n int) Option {
	return func(o *Orchestrator) { o.maxContextChars = n }
}

// WithMinScore drops retrieved units scoring below s. Zero disables the threshold.
func WithMinScore(s float64) Option {
	return func(o *Orchestrator) { o.minScore = s }
}

// WithMaxHistory sets how many trailing turns are rendered into the prompt.
func WithMaxHistory(n int) Option {
	return func(o *Orchestrator) { o.maxHistory = n }
}

// WithPromptTemplate replaces the default prompt. It must contain {context} and {question}.
func WithPromptTemplate(tmpl string) Option {
	return func(o *Orchestrator) { o.template = tmpl }
}

// WithSearchBackend enables web search when retrieval finds nothing.
func WithSearchBackend(b websearch.Backend) Option {
	return func(o *Orchestrator) { o.search = b }
}

// WithRegistry sets the registry used to build citations.
func WithRegistry(r *metadata.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over index that generates with gen.
func New(index Retriever, gen llm.Generator, opts ...Option) (*Orchestrator, error) {
	if index == nil {
		return nil, models.NewValidationError("index", "must not be nil")
	}
	if gen == nil {
		return nil, models.NewValidationError("generator", "must not be nil")
	}
	o := &Orchestrator{
		index:           index,
		gen:             gen,
		topK:            DefaultTopK,
		maxContextChars: DefaultMaxContextChars,
		maxHistory:      DefaultMaxHistory,
		template:        DefaultPromptTemplate,
		registry:        metadata.NewRegistry(),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.minScore < 0 {
		return nil, models.NewValidationError("min_score", "must not be negative")
	}
	if err := validateTemplate(o.template); err != nil {
		return nil, err
	}
	return o, nil
}

// Provider returns the generation backend name.
func (o *Orchestrator) Provider() string { return o.gen.Name() }

// SearchEnabled reports whether a web search fallback is configured.
func (o *Orchestrator) SearchEnabled() bool { return o.search != nil }

// Query answers req. It fails only on invalid input or a structural index failure; a
// generation failure yields a degraded answer instead of an error.
func (o *Orchestrator) Query(ctx context.Context, req models.QueryRequest) (*models.Answer, error) {
	if err := req.Validate(o.topK); err != nil {
		return nil, err
	}
	scored, err := o.index.SearchWithScores(ctx, req.Question, req.K, req.Filter)
	if err != nil {
		return nil, err
	}
	if o.minScore > 0 {
		kept := scored[:0:0]
		for _, s := range scored {
			if s.Score >= o.minScore {
				kept = append(kept, s)
			}
		}
		scored = kept
	}
	if len(scored) == 0 {
		return o.noContext(ctx, req), nil
	}

	contextText, used := Assemble(scored, o.maxContextChars)
	answer := &models.Answer{NumSources: len(used), Provider: o.gen.Name()}
	answer.Answer, answer.Degraded = o.generate(ctx, contextText, req)
	if req.ReturnSources {
		units := make([]*models.RetrievalUnit, len(used))
		answer.Sources = make([]models.Source, len(used))
		for i, su := range used {
			units[i] = su.Unit
			answer.Sources[i] = models.Source{Content: su.Unit.Content, Metadata: su.Unit.Metadata, Score: su.Score}
		}
		answer.Citations = o.registry.Aggregate(units)
	}
	o.logger.Info("query answered",
		zap.Int("retrieved", len(scored)),
		zap.Int("sources", len(used)),
		zap.Bool("degraded", answer.Degraded),
	)
	return answer, nil
}

// noContext answers from web search when configured, otherwise with the fixed message.
func (o *Orchestrator) noContext(ctx context.Context, req models.QueryRequest) *models.Answer {
	insufficient := &models.Answer{Answer: InsufficientKnowledgeMessage, NumSources: 0}
	if o.search == nil {
		o.logger.Info("no relevant units found")
		return insufficient
	}
	snippets, err := o.search.Search(ctx, req.Question)
	if err != nil {
		o.logger.Warn("web search failed", zap.String("backend", o.search.Name()), zap.Error(err))
		return insufficient
	}
	if strings.TrimSpace(snippets) == "" {
		return insufficient
	}
	answer := &models.Answer{Provider: o.gen.Name(), UsedSearch: true}
	answer.Answer, answer.Degraded = o.generate(ctx, snippets, req)
	o.logger.Info("query answered from web search", zap.String("backend", o.search.Name()))
	return answer
}

func (o *Orchestrator) generate(ctx context.Context, contextText string, req models.QueryRequest) (string, bool) {
	prompt := RenderPrompt(o.template, contextText, req.Question, req.History, o.maxHistory)
	out, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		o.logger.Error("generation failed", zap.String("provider", o.gen.Name()), zap.Error(err))
		return fmt.Sprintf("I encountered an error while generating an answer: %v", err), true
	}
	return out, false
}
