package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"tdp_go/internal/domain"
	"tdp_go/internal/infra"
	"tdp_go/internal/infra/price"
	"tdp_go/internal/infra/storage"
)

// seedlimits populates a player's buy-limit table from the public item
// mapping, with zero bought quantities and no pending resets.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	player := flag.String("player", "", "player name to seed limits for")
	flag.Parse()

	if *player == "" {
		slog.Error("player name is required")
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	prices := price.NewClient(cfg.API.Price.BaseURL, cfg.API.Price.UserAgent, time.Duration(cfg.API.Price.TimeoutSec)*time.Second, logger)
	items, err := prices.ItemMap(ctx)
	if err != nil {
		slog.Error("item mapping fetch failed", slog.Any("error", err))
		os.Exit(1)
	}

	limits := make(map[int]domain.BuyLimit, len(items))
	for itemID, item := range items {
		limits[itemID] = domain.BuyLimit{
			ItemID: itemID,
			Bought: 0,
			Limit:  item.Limit,
		}
	}

	if err := store.SetAllBuyLimits(ctx, *player, limits); err != nil {
		slog.Error("limit seed failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("buy limits seeded",
		slog.String("player", *player),
		slog.Int("items", len(limits)),
	)
}
