// Package config provides configuration loading and structs for the agilerag server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	RAG       RAGConfig       `yaml:"rag"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string `yaml:"host" validate:"required"`
	Port               int    `yaml:"port" validate:"gte=1,lte=65535"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" validate:"gte=0"`
}

// StorageConfig holds the collection location.
type StorageConfig struct {
	PersistPath    string `yaml:"persist_path" validate:"required"`
	CollectionName string `yaml:"collection_name" validate:"required"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	// Model is "hashing", "onnx", or "openai:<name>".
	Model      string `yaml:"model" validate:"required"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions" validate:"gt=0"`
	MaxTokens  int    `yaml:"max_tokens" validate:"gt=0"`
	CacheSize  int    `yaml:"cache_size" validate:"gte=0"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
}

// IngestConfig holds chunking and loader settings.
type IngestConfig struct {
	ChunkSize    int   `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int   `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	Workers      int   `yaml:"workers" validate:"gt=0"`
	Recursive    *bool `yaml:"recursive"`
}

// RecursiveOrDefault returns whether directory ingest recurses; defaults to true when unset.
func (c *IngestConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// RAGConfig holds retrieval and prompt settings.
type RAGConfig struct {
	TopK            int     `yaml:"top_k" validate:"gt=0,lte=50"`
	MaxContextChars int     `yaml:"max_context_chars" validate:"gte=0"`
	MinScore        float64 `yaml:"min_score" validate:"gte=0,lte=1"`
	MaxHistory      int     `yaml:"max_history" validate:"gte=0"`
	PromptTemplate  string  `yaml:"prompt_template"`
}

// LLMConfig holds generation backend settings.
type LLMConfig struct {
	Provider           string  `yaml:"provider" validate:"required"`
	Model              string  `yaml:"model"`
	Temperature        float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens          int     `yaml:"max_tokens" validate:"gt=0"`
	TimeoutSeconds     int     `yaml:"timeout_seconds" validate:"gt=0"`
	RateLimitPerMinute int     `yaml:"rate_limit_per_minute" validate:"gte=0"`
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url" validate:"omitempty,url"`
}

// SearchConfig holds web search fallback settings.
type SearchConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider" validate:"omitempty,oneof=tavily serper"`
	MaxResults     int    `yaml:"max_results" validate:"gt=0"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gt=0"`
	TavilyAPIKey   string `yaml:"tavily_api_key"`
	SerperAPIKey   string `yaml:"serper_api_key"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults and environment keys,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)

	configDir := filepath.Dir(path)
	cfg.Storage.PersistPath = expandPath(cfg.Storage.PersistPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no file behind it.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	model := c.Embedding.Model
	switch {
	case model == "hashing", model == "onnx":
	case strings.HasPrefix(model, "openai:") && len(model) > len("openai:"):
	default:
		return fmt.Errorf("invalid config: embedding.model %q must be hashing, onnx, or openai:<name>", model)
	}
	if model == "onnx" && c.Embedding.ModelPath == "" {
		return fmt.Errorf("invalid config: embedding.model_path is required for onnx")
	}
	return nil
}

// LLMAPIKey returns the key for the configured provider: llm.api_key, then the
// provider's environment variable.
func (c *Config) LLMAPIKey(getenv func(string) string) string {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	if name, ok := providerKeyEnv[c.LLM.Provider]; ok {
		return getenv(name)
	}
	return ""
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
