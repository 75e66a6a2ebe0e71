package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.ChunkSize != 1500 || cfg.ChunkOverlap != 200 {
		t.Errorf("Unexpected chunk defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 10 {
		t.Errorf("Unexpected top_k default: %d", cfg.TopK)
	}
	if cfg.SimilarityFloor != 0.35 {
		t.Errorf("Unexpected similarity floor default: %f", cfg.SimilarityFloor)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("chunk_size: 800\ntop_k: 5\nlog_level: debug\nvector_backend: surrealdb\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ChunkSize != 800 {
		t.Errorf("chunk_size = %d, want 800", cfg.ChunkSize)
	}
	if cfg.TopK != 5 {
		t.Errorf("top_k = %d, want 5", cfg.TopK)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log_level = %v, want debug", cfg.LogLevel)
	}
	if cfg.VectorBackend != "surrealdb" {
		t.Errorf("vector_backend = %s, want surrealdb", cfg.VectorBackend)
	}
	// Untouched values keep their defaults.
	if cfg.ChunkOverlap != 200 {
		t.Errorf("chunk_overlap = %d, want default 200", cfg.ChunkOverlap)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("top_k: 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DOCCHAT_TOP_K", "3")
	t.Setenv("DOCCHAT_SIMILARITY_FLOOR", "0.5")
	t.Setenv("GOOGLE_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TopK != 3 {
		t.Errorf("env should override file: top_k = %d, want 3", cfg.TopK)
	}
	if cfg.SimilarityFloor != 0.5 {
		t.Errorf("similarity_floor = %f, want 0.5", cfg.SimilarityFloor)
	}
	if cfg.GoogleAPIKey != "secret" {
		t.Error("API key should come from the environment")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Explicit missing config file should error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"overlap >= size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"floor above one", func(c *Config) { c.SimilarityFloor = 1.5 }},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"unknown vector backend", func(c *Config) { c.VectorBackend = "redis" }},
		{"unknown history backend", func(c *Config) { c.HistoryBackend = "postgres" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
