// Package llm provides text generation backends behind a single Generator interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnknownProvider is returned by Registry.New for names that were never registered.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Default generation settings.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

// Generator produces a completion for a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Options configures a provider. Zero values select provider defaults.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
}

func (o Options) withDefaults(model, baseURL string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Constructor builds a Generator from options.
type Constructor func(Options) (Generator, error)

// Registry maps provider names to constructors.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry with every built-in provider.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ProviderOpenAI, NewOpenAI)
	r.Register(ProviderDeepSeek, NewDeepSeek)
	r.Register(ProviderAnthropic, NewAnthropic)
	r.Register(ProviderOllama, NewOllama)
	r.Register(ProviderGemini, NewGemini)
	r.Register(ProviderGoogle, NewGemini)
	return r
}

// Register adds or replaces the constructor for name. Names are case-insensitive.
func (r *Registry) Register(name string, c Constructor) {
	r.constructors[strings.ToLower(name)] = c
}

// New builds the provider registered as name.
func (r *Registry) New(name string, opts Options) (Generator, error) {
	c, ok := r.constructors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	return c(opts)
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
