// Package main provides the entry point for the docchat HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/raglab/docchat/internal/app"
	"github.com/raglab/docchat/internal/config"
	"github.com/raglab/docchat/internal/server"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("DOCCHAT_CONFIG"))
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("docchat-server starting",
		"version", version,
		"addr", cfg.ListenAddr,
		"vector_backend", cfg.VectorBackend,
		"history_backend", cfg.HistoryBackend,
		"embedding_model", cfg.EmbeddingModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pipeline.Close(context.Background()); err != nil {
			logger.Error("failed to close backends", "error", err)
		}
	}()

	srv := server.New(pipeline, cfg.ListenAddr, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
