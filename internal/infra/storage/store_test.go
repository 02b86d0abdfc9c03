package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tdp_go/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return store
}

func testSession(sessionID string) domain.TradeSession {
	inv := domain.Inventory{Items: []domain.Item{
		{ID: domain.CoinsItemID, Quantity: 100_000},
		{ID: 1511, Quantity: 20},
	}}
	return domain.NewTradeSession(sessionID, "tester", domain.EnvDev, time.Now(), 105_000, inv)
}

func TestTradeSessionRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	session := testSession("s1")
	if err := s.SetTradeSession(ctx, session); err != nil {
		t.Fatalf("SetTradeSession failed: %v", err)
	}

	fetched, err := s.TradeSession(ctx, "s1")
	if err != nil {
		t.Fatalf("TradeSession failed: %v", err)
	}
	if fetched.SessionID != "s1" || fetched.PlayerName != "tester" {
		t.Errorf("unexpected session identity: %+v", fetched)
	}
	if fetched.Start.StartItems[1511] != 20 {
		t.Errorf("expected 20 start logs, got %d", fetched.Start.StartItems[1511])
	}
}

func TestMissingKeyIsKeyNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.TradeSession(context.Background(), "nope")
	var notFound *domain.KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected KeyNotFoundError, got %v", err)
	}
	if !domain.IsRetriable(err) {
		t.Error("missing key should be retriable")
	}
}

func TestActiveOrdersAndHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SetTradeSession(ctx, testSession("s1")); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	order := domain.Order{
		ID:        "o1",
		CalcCycle: 3,
		StratName: "flip",
		Slot:      2,
		Metadata:  domain.OfferMetadata{Kind: domain.OfferKindBuy, ItemID: 1511, Price: 100, Quantity: 10},
		Time:      time.Now(),
	}

	if err := s.AppendOrders(ctx, "s1", map[string][]domain.Order{"flip": {order}}); err != nil {
		t.Fatalf("AppendOrders failed: %v", err)
	}
	if err := s.SetActiveOrders(ctx, "s1", map[int]domain.Order{2: order}); err != nil {
		t.Fatalf("SetActiveOrders failed: %v", err)
	}

	active, err := s.ActiveOrders(ctx, "s1")
	if err != nil {
		t.Fatalf("ActiveOrders failed: %v", err)
	}
	if active[2].ID != "o1" {
		t.Errorf("expected order o1 in slot 2, got %+v", active)
	}

	orders, err := s.Orders(ctx, "s1")
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if len(orders["flip"]) != 1 || orders["flip"][0].ID != "o1" {
		t.Errorf("unexpected order history: %+v", orders)
	}

	trade := domain.Trade{ID: "o1", CalcCycle: 4, StratName: "flip", Transacted: 10, Metadata: order.Metadata, Time: time.Now()}
	if err := s.AppendTrades(ctx, "s1", map[string][]domain.Trade{"flip": {trade}}); err != nil {
		t.Fatalf("AppendTrades failed: %v", err)
	}
	if err := s.AppendTrades(ctx, "s1", map[string][]domain.Trade{"flip": {trade}}); err != nil {
		t.Fatalf("second AppendTrades failed: %v", err)
	}

	trades, err := s.Trades(ctx, "s1")
	if err != nil {
		t.Fatalf("Trades failed: %v", err)
	}
	if len(trades["flip"]) != 2 {
		t.Errorf("expected appended history of 2 trades, got %d", len(trades["flip"]))
	}
}

func TestBuyLimitsHash(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	reset := time.Now().Add(4 * time.Hour).Truncate(time.Second)
	limits := map[int]domain.BuyLimit{
		1511: {ItemID: 1511, Bought: 5, Limit: 25000, ResetTime: &reset},
		560:  {ItemID: 560, Bought: 0, Limit: 12000},
	}
	if err := s.SetAllBuyLimits(ctx, "tester", limits); err != nil {
		t.Fatalf("SetAllBuyLimits failed: %v", err)
	}

	t.Run("single item lookup", func(t *testing.T) {
		limit, err := s.BuyLimit(ctx, "tester", 1511)
		if err != nil {
			t.Fatalf("BuyLimit failed: %v", err)
		}
		if limit.Bought != 5 || limit.Limit != 25000 {
			t.Errorf("unexpected limit: %+v", limit)
		}
		if limit.ResetTime == nil || !limit.ResetTime.Equal(reset) {
			t.Errorf("reset time not preserved: %v", limit.ResetTime)
		}
	})

	t.Run("full table lookup", func(t *testing.T) {
		all, err := s.AllBuyLimits(ctx, "tester")
		if err != nil {
			t.Fatalf("AllBuyLimits failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 limits, got %d", len(all))
		}
		if all[560].ResetTime != nil {
			t.Errorf("expected nil reset time for untouched item, got %v", all[560].ResetTime)
		}
	})

	t.Run("players are isolated", func(t *testing.T) {
		other, err := s.AllBuyLimits(ctx, "someone_else")
		if err != nil {
			t.Fatalf("AllBuyLimits failed: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("expected empty table for other player, got %d entries", len(other))
		}
	})
}

func TestSessionValidity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("missing flag reads as invalid", func(t *testing.T) {
		valid, err := s.SessionValidity(ctx, "s1")
		if err != nil {
			t.Fatalf("SessionValidity failed: %v", err)
		}
		if valid {
			t.Error("missing validity flag should read false")
		}
	})

	t.Run("set and read back", func(t *testing.T) {
		if err := s.SetSessionValidity(ctx, "s1", true); err != nil {
			t.Fatalf("SetSessionValidity failed: %v", err)
		}
		valid, err := s.SessionValidity(ctx, "s1")
		if err != nil {
			t.Fatalf("SessionValidity failed: %v", err)
		}
		if !valid {
			t.Error("expected validity true after set")
		}
	})
}

func TestDeleteSessionRemovesDerivedRecords(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SetTradeSession(ctx, testSession("s1")); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}
	if err := s.SetPnl(ctx, "s1", domain.NewPnl("s1", time.Now())); err != nil {
		t.Fatalf("seed pnl failed: %v", err)
	}
	if err := s.SetSessionValidity(ctx, "s1", true); err != nil {
		t.Fatalf("seed validity failed: %v", err)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	var notFound *domain.KeyNotFoundError
	if _, err := s.TradeSession(ctx, "s1"); !errors.As(err, &notFound) {
		t.Errorf("expected session gone, got %v", err)
	}
	if _, err := s.Pnl(ctx, "s1"); !errors.As(err, &notFound) {
		t.Errorf("expected pnl gone, got %v", err)
	}
	valid, err := s.SessionValidity(ctx, "s1")
	if err != nil || valid {
		t.Errorf("expected validity flag gone, got valid=%v err=%v", valid, err)
	}
}

func TestCodecRejectsUnknownVersion(t *testing.T) {
	raw, err := encode(2, domain.BuyLimit{ItemID: 1511})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var limit domain.BuyLimit
	if err := decode(1, raw, &limit); err == nil {
		t.Fatal("expected version mismatch error")
	}
}
