// Package config loads and validates the pipeline configuration.
// The core packages consume a Config value; they never read the
// environment themselves.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend selects where vectors and conversations are stored.
type Backend string

const (
	BackendMemory  Backend = "memory"
	BackendSurreal Backend = "surrealdb"
	BackendMongo   Backend = "mongodb"
)

// Config holds all configuration values.
type Config struct {
	// Chunking
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Retrieval
	TopK            int     `yaml:"top_k"`
	SimilarityFloor float64 `yaml:"similarity_floor"`

	// Embedding
	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`

	// Completion providers
	LLMProvider         string `yaml:"llm_provider"`
	LLMModel            string `yaml:"llm_model"`
	LLMFallbackProvider string `yaml:"llm_fallback_provider"`
	LLMFallbackModel    string `yaml:"llm_fallback_model"`
	PromptBudget        int    `yaml:"prompt_budget"`
	ProviderTimeoutSecs int    `yaml:"provider_timeout_seconds"`

	// Provider credentials/endpoints. Env-only, never in the file.
	GoogleAPIKey string `yaml:"-"`
	GroqAPIKey   string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
	OllamaHost   string `yaml:"ollama_host"`

	// Vector index backend
	VectorBackend      string `yaml:"vector_backend"`
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"-"`
	SurrealDBPass      string `yaml:"-"`

	// Conversation store backend
	HistoryBackend string `yaml:"history_backend"`
	MongoURI       string `yaml:"mongo_uri"`
	MongoDatabase  string `yaml:"mongo_database"`
	HistoryLimit   int    `yaml:"history_limit"`

	// HTTP server
	ListenAddr string `yaml:"listen_addr"`

	// Logging
	LogFile      string     `yaml:"log_file"`
	LogLevelName string     `yaml:"log_level"`
	LogLevel     slog.Level `yaml:"-"`
}

// Default returns the configuration used when neither file nor
// environment override a value.
func Default() Config {
	return Config{
		ChunkSize:       1500,
		ChunkOverlap:    200,
		TopK:            10,
		SimilarityFloor: 0.35,

		EmbeddingProvider:  "ollama",
		EmbeddingModel:     "all-minilm:l6-v2",
		EmbeddingDimension: 384,
		EmbeddingBatchSize: 100,

		LLMProvider:         "google",
		LLMModel:            "gemini-2.0-flash",
		LLMFallbackProvider: "groq",
		LLMFallbackModel:    "llama-3.3-70b-versatile",
		PromptBudget:        12000,
		ProviderTimeoutSecs: 30,

		OllamaHost: "http://localhost:11434",

		VectorBackend:      "memory",
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "docchat",
		SurrealDBDatabase:  "vectors",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",

		HistoryBackend: "memory",
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "docchat",
		HistoryLimit:   50,

		ListenAddr: ":8080",

		LogFile:  "/tmp/docchat.log",
		LogLevel: slog.LevelInfo,
	}
}

// Load builds the configuration: defaults, then the optional YAML
// file at path, then environment overrides. An empty path skips the
// file; a missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		if cfg.LogLevelName != "" {
			cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setInt(&c.ChunkSize, "DOCCHAT_CHUNK_SIZE")
	setInt(&c.ChunkOverlap, "DOCCHAT_CHUNK_OVERLAP")
	setInt(&c.TopK, "DOCCHAT_TOP_K")
	setFloat(&c.SimilarityFloor, "DOCCHAT_SIMILARITY_FLOOR")

	setString(&c.EmbeddingProvider, "DOCCHAT_EMBEDDING_PROVIDER")
	setString(&c.EmbeddingModel, "DOCCHAT_EMBEDDING_MODEL")
	setInt(&c.EmbeddingDimension, "DOCCHAT_EMBEDDING_DIMENSION")
	setInt(&c.EmbeddingBatchSize, "DOCCHAT_EMBEDDING_BATCH_SIZE")

	setString(&c.LLMProvider, "DOCCHAT_LLM_PROVIDER")
	setString(&c.LLMModel, "DOCCHAT_LLM_MODEL")
	setString(&c.LLMFallbackProvider, "DOCCHAT_LLM_FALLBACK_PROVIDER")
	setString(&c.LLMFallbackModel, "DOCCHAT_LLM_FALLBACK_MODEL")
	setInt(&c.PromptBudget, "DOCCHAT_PROMPT_BUDGET")
	setInt(&c.ProviderTimeoutSecs, "DOCCHAT_PROVIDER_TIMEOUT_SECONDS")

	setString(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&c.GroqAPIKey, "GROQ_API_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OllamaHost, "OLLAMA_HOST")

	setString(&c.VectorBackend, "DOCCHAT_VECTOR_BACKEND")
	setString(&c.SurrealDBURL, "SURREALDB_URL")
	setString(&c.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setString(&c.SurrealDBDatabase, "SURREALDB_DATABASE")
	setString(&c.SurrealDBUser, "SURREALDB_USER")
	setString(&c.SurrealDBPass, "SURREALDB_PASS")

	setString(&c.HistoryBackend, "DOCCHAT_HISTORY_BACKEND")
	setString(&c.MongoURI, "DOCCHAT_MONGO_URI")
	setString(&c.MongoDatabase, "DOCCHAT_MONGO_DATABASE")
	setInt(&c.HistoryLimit, "DOCCHAT_HISTORY_LIMIT")

	setString(&c.ListenAddr, "DOCCHAT_LISTEN_ADDR")

	setString(&c.LogFile, "DOCCHAT_LOG_FILE")
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return fmt.Errorf("similarity_floor must be in [0, 1], got %f", c.SimilarityFloor)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be positive, got %d", c.EmbeddingDimension)
	}

	switch Backend(c.VectorBackend) {
	case BackendMemory, BackendSurreal:
	default:
		return fmt.Errorf("unsupported vector_backend: %s", c.VectorBackend)
	}
	switch Backend(c.HistoryBackend) {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("unsupported history_backend: %s", c.HistoryBackend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
