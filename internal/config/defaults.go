package config

// Environment variables consulted for API keys.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvDeepSeekKey  = "DEEPSEEK_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGoogleKey    = "GOOGLE_API_KEY"
	EnvTavilyKey    = "TAVILY_API_KEY"
	EnvSerperKey    = "SERPER_API_KEY"
)

var providerKeyEnv = map[string]string{
	"openai":    EnvOpenAIKey,
	"deepseek":  EnvDeepSeekKey,
	"anthropic": EnvAnthropicKey,
	"google":    EnvGoogleKey,
	"gemini":    EnvGoogleKey,
}

// DefaultPersistPath is where collections live when storage.persist_path is unset.
const DefaultPersistPath = "/usr/local/var/agilerag/data"

// ApplyEnv fills API keys left empty in the file from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg.Search.TavilyAPIKey == "" {
		cfg.Search.TavilyAPIKey = getenv(EnvTavilyKey)
	}
	if cfg.Search.SerperAPIKey == "" {
		cfg.Search.SerperAPIKey = getenv(EnvSerperKey)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = getenv(EnvOpenAIKey)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = cfg.LLMAPIKey(getenv)
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.PersistPath == "" {
		cfg.Storage.PersistPath = DefaultPersistPath
	}
	if cfg.Storage.CollectionName == "" {
		cfg.Storage.CollectionName = "agile_knowledge_base"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "hashing"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.MaxContextChars == 0 {
		cfg.RAG.MaxContextChars = 4000
	}
	if cfg.RAG.MaxHistory == 0 {
		cfg.RAG.MaxHistory = 20
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.LLM.RateLimitPerMinute == 0 {
		cfg.LLM.RateLimitPerMinute = 60
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Search.TimeoutSeconds == 0 {
		cfg.Search.TimeoutSeconds = 15
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
