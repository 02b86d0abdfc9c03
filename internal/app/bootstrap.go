package app

import (
	"log/slog"
	"time"

	"tdp_go/internal/engine"
	"tdp_go/internal/infra"
	"tdp_go/internal/infra/gds"
	"tdp_go/internal/infra/price"
	"tdp_go/internal/infra/storage"
	"tdp_go/internal/server"
	"tdp_go/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Store    *storage.Store
	Gds      *gds.Client
	Prices   *price.Client
	Counters *infra.Counters

	Keeper   *engine.BookKeeper
	Sessions *service.Sessions
	Limits   *service.Limits
	Metrics  *service.Metrics
	Server   *server.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logging,
// store, collaborator clients and the service graph).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("bootstrapping trade data platform")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Store (DB)
	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("store initialized", slog.String("path", cfg.Store.Path))

	// 4. Collaborator clients
	b.Gds = gds.NewClient(cfg.API.Gds.BaseURL, time.Duration(cfg.API.Gds.TimeoutSec)*time.Second, logger)
	b.Prices = price.NewClient(cfg.API.Price.BaseURL, cfg.API.Price.UserAgent, time.Duration(cfg.API.Price.TimeoutSec)*time.Second, logger)
	b.Counters = infra.NewCounters()

	// 5. Service graph
	b.Keeper = engine.NewBookKeeper(store, b.Gds, logger, cfg.QuotaWindow())
	b.Metrics = service.NewMetrics(store, b.Gds, b.Prices, logger, cfg.SoftLock.MaxAttempts, cfg.LockWait())
	b.Sessions = service.NewSessions(store, b.Gds, b.Keeper, b.Metrics, logger)
	b.Limits = service.NewLimits(store, b.Gds, b.Keeper, logger)
	b.Server = server.New(b.Sessions, b.Limits, b.Metrics, b.Gds, b.Counters, logger)

	slog.Info("service graph ready", slog.String("addr", cfg.Service.Addr))
	return nil
}
