package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  persist_path: "/tmp/agilerag"
llm:
  provider: anthropic
  model: claude-3-haiku-20240307
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.PersistPath != "/tmp/agilerag" {
		t.Errorf("persist_path = %s", cfg.Storage.PersistPath)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "claude-3-haiku-20240307" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  persist_path: "./data"
watch:
  directories: ["./docs/scrum"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data"); cfg.Storage.PersistPath != want {
		t.Errorf("persist_path = %s, want %s", cfg.Storage.PersistPath, want)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	if want := filepath.Join(dir, "docs", "scrum"); cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLoad_envKeys(t *testing.T) {
	t.Setenv(EnvDeepSeekKey, "ds-key")
	t.Setenv(EnvTavilyKey, "tv-key")
	t.Setenv(EnvSerperKey, "")
	path := writeConfig(t, `
llm:
  provider: deepseek
search:
  serper_api_key: from-file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "ds-key" {
		t.Errorf("llm api key = %q, want ds-key", cfg.LLM.APIKey)
	}
	if cfg.Search.TavilyAPIKey != "tv-key" {
		t.Errorf("tavily key = %q", cfg.Search.TavilyAPIKey)
	}
	if cfg.Search.SerperAPIKey != "from-file" {
		t.Errorf("file value should win over env, got %q", cfg.Search.SerperAPIKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"host", cfg.Server.Host, "localhost"},
		{"port", cfg.Server.Port, 8080},
		{"collection", cfg.Storage.CollectionName, "agile_knowledge_base"},
		{"persist_path", cfg.Storage.PersistPath, DefaultPersistPath},
		{"embedding model", cfg.Embedding.Model, "hashing"},
		{"chunk_size", cfg.Ingest.ChunkSize, 1000},
		{"chunk_overlap", cfg.Ingest.ChunkOverlap, 200},
		{"workers", cfg.Ingest.Workers, 4},
		{"top_k", cfg.RAG.TopK, 5},
		{"max_context_chars", cfg.RAG.MaxContextChars, 4000},
		{"min_score", cfg.RAG.MinScore, 0.0},
		{"max_history", cfg.RAG.MaxHistory, 20},
		{"provider", cfg.LLM.Provider, "openai"},
		{"temperature", cfg.LLM.Temperature, 0.3},
		{"llm max_tokens", cfg.LLM.MaxTokens, 1000},
		{"llm timeout", cfg.LLM.TimeoutSeconds, 60},
		{"llm rate", cfg.LLM.RateLimitPerMinute, 60},
		{"search enabled", cfg.Search.Enabled, false},
		{"search max_results", cfg.Search.MaxResults, 5},
		{"search timeout", cfg.Search.TimeoutSeconds, 15},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if !cfg.Ingest.RecursiveOrDefault() {
		t.Error("ingest recursive should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"overlap not below size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }, "ChunkOverlap"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Port"},
		{"negative min score", func(c *Config) { c.RAG.MinScore = -0.5 }, "MinScore"},
		{"unknown search provider", func(c *Config) { c.Search.Provider = "bing" }, "Provider"},
		{"unknown embedding model", func(c *Config) { c.Embedding.Model = "word2vec" }, "embedding.model"},
		{"openai without name", func(c *Config) { c.Embedding.Model = "openai:" }, "embedding.model"},
		{"onnx without path", func(c *Config) { c.Embedding.Model = "onnx" }, "model_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestLLMAPIKey(t *testing.T) {
	env := map[string]string{EnvAnthropicKey: "ant"}
	getenv := func(k string) string { return env[k] }
	cfg := &Config{LLM: LLMConfig{Provider: "anthropic"}}
	if got := cfg.LLMAPIKey(getenv); got != "ant" {
		t.Errorf("got %q, want ant", got)
	}
	env[EnvGoogleKey] = "goog"
	for _, p := range []string{"google", "gemini"} {
		cfg.LLM.Provider = p
		if got := cfg.LLMAPIKey(getenv); got != "goog" {
			t.Errorf("%s: got %q, want goog", p, got)
		}
	}
	cfg.LLM.Provider = "ollama"
	if got := cfg.LLMAPIKey(getenv); got != "" {
		t.Errorf("ollama has no key, got %q", got)
	}
	cfg.LLM.APIKey = "explicit"
	if got := cfg.LLMAPIKey(getenv); got != "explicit" {
		t.Errorf("got %q, want explicit", got)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{PersistPath: "/tmp/agilerag"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
