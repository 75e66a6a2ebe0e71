package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("pipeline ready", "component", "logging")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log file should carry JSON lines, got %q: %v", lines[0], err)
	}
	if entry["msg"] != "pipeline ready" {
		t.Errorf("Unexpected msg field: %v", entry["msg"])
	}
	if entry["component"] != "logging" {
		t.Errorf("Unexpected component field: %v", entry["component"])
	}
}

func TestSetupLoggerFallsBackToStderr(t *testing.T) {
	// A directory cannot be opened as a log file.
	logger, cleanup := SetupLogger(t.TempDir(), slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected a stderr-only logger, got nil")
	}
	if err := cleanup(); err != nil {
		t.Errorf("fallback cleanup should be a no-op, got %v", err)
	}
}
