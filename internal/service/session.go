package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tdp_go/internal/domain"
	"tdp_go/internal/engine"
)

// Sessions manages the trade-session lifecycle: creation with the
// start-of-session baseline, ledger reads with strategy filtering, and
// the validity flag the write path toggles around its cycles.
type Sessions struct {
	store   domain.Store
	market  domain.MarketProvider
	keeper  *engine.BookKeeper
	metrics *Metrics
	log     *slog.Logger
}

// NewSessions wires the session service.
func NewSessions(store domain.Store, market domain.MarketProvider, keeper *engine.BookKeeper, metrics *Metrics, log *slog.Logger) *Sessions {
	return &Sessions{
		store:   store,
		market:  market,
		keeper:  keeper,
		metrics: metrics,
		log:     log,
	}
}

// Create starts a new trade session: validity flag on, empty pnl
// history, start items from the live inventory and starting net worth
// from the metrics engine. An existing id fails with ErrSessionExists.
func (s *Sessions) Create(ctx context.Context, sessionID, playerName string, env domain.Environment, startTime time.Time) (domain.TradeSession, error) {
	_, err := s.store.TradeSession(ctx, sessionID)
	if err == nil {
		return domain.TradeSession{}, domain.ErrSessionExists
	}
	var notFound *domain.KeyNotFoundError
	if !errors.As(err, &notFound) {
		return domain.TradeSession{}, err
	}

	if err := s.store.SetSessionValidity(ctx, sessionID, true); err != nil {
		return domain.TradeSession{}, err
	}
	if err := s.store.SetPnl(ctx, sessionID, domain.NewPnl(sessionID, startTime)); err != nil {
		return domain.TradeSession{}, err
	}

	startNetWorth, err := s.metrics.NetWorth(ctx, sessionID)
	if err != nil {
		return domain.TradeSession{}, err
	}
	inv, err := s.market.Inventory(ctx)
	if err != nil {
		return domain.TradeSession{}, err
	}

	session := domain.NewTradeSession(sessionID, playerName, env, startTime, startNetWorth, inv)
	if err := s.store.SetTradeSession(ctx, session); err != nil {
		return domain.TradeSession{}, err
	}

	s.log.Info("trade session created",
		slog.String("session_id", sessionID),
		slog.String("player", playerName),
		slog.Int64("start_nw", startNetWorth),
	)
	return session, nil
}

// Get loads the session ledger aggregate.
func (s *Sessions) Get(ctx context.Context, sessionID string) (domain.TradeSession, error) {
	return s.store.TradeSession(ctx, sessionID)
}

// Update overwrites the session ledger aggregate.
func (s *Sessions) Update(ctx context.Context, session domain.TradeSession) error {
	return s.store.SetTradeSession(ctx, session)
}

// SaveOrders registers newly submitted orders through the book keeper.
func (s *Sessions) SaveOrders(ctx context.Context, sessionID string, orders []domain.Order) error {
	grouped := make(map[string][]domain.Order)
	for _, order := range orders {
		grouped[order.StratName] = append(grouped[order.StratName], order)
	}
	return s.keeper.SaveOrders(ctx, sessionID, grouped)
}

// BookTrades runs reconciliation against the current market snapshot.
func (s *Sessions) BookTrades(ctx context.Context, sessionID string, calcCycle int, now time.Time) (map[string][]domain.Trade, error) {
	return s.keeper.BookTrades(ctx, sessionID, calcCycle, now)
}

// Orders returns booked orders, optionally filtered to the named
// strategies.
func (s *Sessions) Orders(ctx context.Context, sessionID string, strats []string) (map[string][]domain.Order, error) {
	orders, err := s.store.Orders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return filterByStrats(orders, strats), nil
}

// Trades returns booked trades, optionally filtered to the named
// strategies.
func (s *Sessions) Trades(ctx context.Context, sessionID string, strats []string) (map[string][]domain.Trade, error) {
	trades, err := s.store.Trades(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return filterByStrats(trades, strats), nil
}

// SetValidity flips the write path's in-progress flag. The trading loop
// sets it false before mutating and true when the cycle completes.
func (s *Sessions) SetValidity(ctx context.Context, sessionID string, valid bool) error {
	return s.store.SetSessionValidity(ctx, sessionID, valid)
}

// Purge removes the session, its pnl history and its validity flag.
func (s *Sessions) Purge(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

func filterByStrats[T any](vals map[string][]T, strats []string) map[string][]T {
	if strats == nil {
		return vals
	}
	wanted := make(map[string]bool, len(strats))
	for _, strat := range strats {
		wanted[strat] = true
	}
	filtered := make(map[string][]T)
	for strat, list := range vals {
		if wanted[strat] {
			filtered[strat] = list
		}
	}
	return filtered
}
