package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"tdp_go/internal/infra"
	"tdp_go/internal/infra/storage"
)

// purgesession removes a trade session and its derived records from
// the store.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	sessionID := flag.String("session", "", "session id to purge")
	flag.Parse()

	if *sessionID == "" {
		slog.Error("session id is required")
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("store open failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.DeleteSession(ctx, *sessionID); err != nil {
		slog.Error("session purge failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("session purged", slog.String("session_id", *sessionID))
}
