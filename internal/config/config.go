package config

import (
	"os"
	"strconv"
)

// Config holds every knob the core consumes. Values are injected here once
// at startup and treated as constants everywhere else.
type Config struct {
	// Generation model
	LLMProvider    string // "anthropic" (default) or "openai"
	AnthropicKey   string
	AnthropicModel string
	OpenAIKey      string
	OpenAIModel    string
	OpenAIBaseURL  string // optional override for OpenAI-compatible APIs
	Temperature    float32
	MaxTokens      int
	MaxToolRounds  int

	// Embeddings
	EmbeddingProvider string // "openai", "ollama" or "hash"
	EmbeddingModel    string
	EmbeddingKey      string // separate key for embeddings; falls back to OpenAIKey

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	MaxResults     int
	MinCourseScore float64

	// Sessions
	MaxHistory int

	// Paths and serving
	DataPath   string
	DocsPath   string
	ListenAddr string
}

// Load builds a Config from environment variables, applying defaults for
// anything unset. Call godotenv.Load first if a .env file should be honored.
func Load() Config {
	cfg := Config{
		LLMProvider:       envOr("LLM_PROVIDER", "anthropic"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:    envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		Temperature:       0,
		MaxTokens:         envInt("MAX_TOKENS", 800),
		MaxToolRounds:     envInt("MAX_TOOL_ROUNDS", 2),
		EmbeddingProvider: envOr("EMBEDDING_PROVIDER", ""),
		EmbeddingModel:    envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingKey:      os.Getenv("EMBEDDING_API_KEY"),
		ChunkSize:         envInt("CHUNK_SIZE", 800),
		ChunkOverlap:      envInt("CHUNK_OVERLAP", 100),
		MaxResults:        envInt("MAX_RESULTS", 5),
		MinCourseScore:    0.35,
		MaxHistory:        envInt("MAX_HISTORY", 2),
		DataPath:          envOr("DATA_PATH", "./data"),
		DocsPath:          envOr("DOCS_PATH", "./docs"),
		ListenAddr:        envOr("LISTEN_ADDR", ":8000"),
	}

	if cfg.EmbeddingKey == "" {
		cfg.EmbeddingKey = cfg.OpenAIKey
	}
	// Pick an embedding backend when none was requested explicitly: OpenAI
	// if a key is available, otherwise the local deterministic embedder.
	if cfg.EmbeddingProvider == "" {
		if cfg.EmbeddingKey != "" {
			cfg.EmbeddingProvider = "openai"
		} else {
			cfg.EmbeddingProvider = "hash"
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
