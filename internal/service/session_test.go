package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tdp_go/internal/domain"
	"tdp_go/internal/engine"
	"tdp_go/internal/infra/storage"
)

func setupSessions(t *testing.T, market *fakeMarket, prices *fakePrices) (*Sessions, *storage.Store) {
	store := openTestStore(t)
	log := discardLogger()
	keeper := engine.NewBookKeeper(store, market, log, 0)
	metrics := NewMetrics(store, market, prices, log, 1, time.Millisecond)
	metrics.sleep = func(time.Duration) {}
	return NewSessions(store, market, keeper, metrics, log), store
}

func TestSessionsCreate(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{
		inventory: domain.Inventory{Items: []domain.Item{
			{ID: domain.CoinsItemID, Quantity: 10_000},
			{ID: 1511, Quantity: 20},
		}},
	}
	prices := &fakePrices{latest: map[int]domain.LatestPrice{
		1511: {Low: 110},
	}}
	sessions, store := setupSessions(t, market, prices)

	start := time.Now()
	session, err := sessions.Create(ctx, "s1", "tester", domain.EnvProd, start)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("baseline is captured at creation", func(t *testing.T) {
		if session.Start.StartNetWorth != 10_000+20*110 {
			t.Errorf("expected start net worth %d, got %d", 10_000+20*110, session.Start.StartNetWorth)
		}
		if session.Start.StartItems[1511] != 20 {
			t.Errorf("expected 20 start logs, got %d", session.Start.StartItems[1511])
		}
		if session.Env != domain.EnvProd {
			t.Errorf("expected PROD env, got %s", session.Env)
		}
	})

	t.Run("validity flag and pnl history are seeded", func(t *testing.T) {
		valid, err := store.SessionValidity(ctx, "s1")
		if err != nil || !valid {
			t.Errorf("expected validity seeded true, got valid=%v err=%v", valid, err)
		}
		pnl, err := store.Pnl(ctx, "s1")
		if err != nil {
			t.Fatalf("Pnl read failed: %v", err)
		}
		if len(pnl.Snapshots) != 0 || pnl.TotalPnl != 0 {
			t.Errorf("expected empty pnl history, got %+v", pnl)
		}
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		_, err := sessions.Create(ctx, "s1", "tester", domain.EnvProd, start)
		if !errors.Is(err, domain.ErrSessionExists) {
			t.Fatalf("expected ErrSessionExists, got %v", err)
		}
	})
}

func TestSessionsLedgerFiltering(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{
		inventory: domain.Inventory{Items: []domain.Item{{ID: domain.CoinsItemID, Quantity: 1000}}},
	}
	sessions, store := setupSessions(t, market, &fakePrices{latest: map[int]domain.LatestPrice{}})

	if _, err := sessions.Create(ctx, "s1", "tester", domain.EnvDev, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	meta := domain.OfferMetadata{Kind: domain.OfferKindBuy, ItemID: 1511, Price: 100, Quantity: 10}
	orders := []domain.Order{
		{ID: "o1", StratName: "flip", Slot: 0, Metadata: meta},
		{ID: "o2", StratName: "arb", Slot: 1, Metadata: meta},
	}
	if err := sessions.SaveOrders(ctx, "s1", orders); err != nil {
		t.Fatalf("SaveOrders failed: %v", err)
	}
	if err := store.AppendTrades(ctx, "s1", map[string][]domain.Trade{
		"flip": {{ID: "o1", StratName: "flip", Transacted: 10, Metadata: meta}},
		"arb":  {{ID: "o2", StratName: "arb", Transacted: 4, Metadata: meta}},
	}); err != nil {
		t.Fatalf("AppendTrades failed: %v", err)
	}

	t.Run("nil filter returns everything", func(t *testing.T) {
		got, err := sessions.Orders(ctx, "s1", nil)
		if err != nil {
			t.Fatalf("Orders failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected both strategies, got %+v", got)
		}
	})

	t.Run("filter keeps only named strategies", func(t *testing.T) {
		got, err := sessions.Trades(ctx, "s1", []string{"flip"})
		if err != nil {
			t.Fatalf("Trades failed: %v", err)
		}
		if len(got) != 1 || len(got["flip"]) != 1 {
			t.Errorf("expected only flip trades, got %+v", got)
		}
	})

	t.Run("filter with unknown strategy returns empty", func(t *testing.T) {
		got, err := sessions.Trades(ctx, "s1", []string{"ghost"})
		if err != nil {
			t.Fatalf("Trades failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no trades, got %+v", got)
		}
	})
}

func TestSessionsValidityAndPurge(t *testing.T) {
	ctx := context.Background()
	market := &fakeMarket{
		inventory: domain.Inventory{Items: []domain.Item{{ID: domain.CoinsItemID, Quantity: 1000}}},
	}
	sessions, store := setupSessions(t, market, &fakePrices{latest: map[int]domain.LatestPrice{}})

	if _, err := sessions.Create(ctx, "s1", "tester", domain.EnvDev, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := sessions.SetValidity(ctx, "s1", false); err != nil {
		t.Fatalf("SetValidity failed: %v", err)
	}
	valid, err := store.SessionValidity(ctx, "s1")
	if err != nil || valid {
		t.Errorf("expected validity false, got valid=%v err=%v", valid, err)
	}

	if err := sessions.Purge(ctx, "s1"); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	var notFound *domain.KeyNotFoundError
	if _, err := sessions.Get(ctx, "s1"); !errors.As(err, &notFound) {
		t.Errorf("expected purged session to be gone, got %v", err)
	}
}
