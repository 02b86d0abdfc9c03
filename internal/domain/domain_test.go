package domain

import (
	"testing"
	"time"
)

func TestParseSlotState(t *testing.T) {
	t.Run("known states parse case-insensitively", func(t *testing.T) {
		if got := ParseSlotState("buying"); got != SlotStateBuying {
			t.Errorf("expected BUYING, got %s", got)
		}
		if got := ParseSlotState("CANCELLED_SELL"); got != SlotStateCancelledSell {
			t.Errorf("expected CANCELLED_SELL, got %s", got)
		}
	})

	t.Run("unknown state resolves to NOT_SPECIFIED", func(t *testing.T) {
		if got := ParseSlotState("LIMBO"); got != SlotStateNotSpecified {
			t.Errorf("expected NOT_SPECIFIED, got %s", got)
		}
	})
}

func TestSlotStateIsTerminal(t *testing.T) {
	terminal := []SlotState{SlotStateCancelledBuy, SlotStateBought, SlotStateCancelledSell, SlotStateSold}
	for _, state := range terminal {
		if !state.IsTerminal() {
			t.Errorf("%s should be terminal", state)
		}
	}
	working := []SlotState{SlotStateEmpty, SlotStateBuying, SlotStateSelling, SlotStateNotSpecified}
	for _, state := range working {
		if state.IsTerminal() {
			t.Errorf("%s should not be terminal", state)
		}
	}
}

func TestOfferKindTerminalState(t *testing.T) {
	cases := map[OfferKind]SlotState{
		OfferKindBuy:        SlotStateBought,
		OfferKindSell:       SlotStateSold,
		OfferKindCancelBuy:  SlotStateCancelledBuy,
		OfferKindCancelSell: SlotStateCancelledSell,
	}
	for kind, want := range cases {
		if got := kind.TerminalState(); got != want {
			t.Errorf("%s resolves to %s, want %s", kind, got, want)
		}
	}
	if OfferKindNotSpecified.TerminalState() != SlotStateNotSpecified {
		t.Error("unspecified kind must not resolve to a terminal state")
	}
}

func TestSlotSameOffer(t *testing.T) {
	base := ExchangeSlot{Position: 2, ItemID: 1511, Price: 100, QuantityTransacted: 3, TotalQuantity: 10, State: SlotStateBuying}

	t.Run("transacted and state may differ", func(t *testing.T) {
		other := base
		other.QuantityTransacted = 7
		other.State = SlotStateBought
		if !base.SameOffer(other) {
			t.Error("progressing fill must stay the same offer")
		}
	})

	t.Run("price change means a new offer", func(t *testing.T) {
		other := base
		other.Price = 99
		if base.SameOffer(other) {
			t.Error("price change must break offer identity")
		}
	})
}

func TestInventoryQuantities(t *testing.T) {
	inv := Inventory{Items: []Item{
		{ID: 1511, Quantity: 20},
		{ID: CoinsItemID, Quantity: 5000},
		{ID: 1511, Quantity: 7},
	}}

	totals := inv.Quantities()
	if totals[1511] != 27 {
		t.Errorf("expected stacks aggregated to 27, got %d", totals[1511])
	}
	if totals[CoinsItemID] != 5000 {
		t.Errorf("expected 5000 coins, got %d", totals[CoinsItemID])
	}
}

func TestBuyLimitRemaining(t *testing.T) {
	if got := (BuyLimit{Bought: 5, Limit: 25}).Remaining(); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	if got := (BuyLimit{Bought: 30, Limit: 25}).Remaining(); got != 0 {
		t.Errorf("overbought limit must clamp to 0, got %d", got)
	}
}

func TestSessionMetadataSlotBudget(t *testing.T) {
	if got := (SessionMetadata{IsF2p: true}).SlotBudget(); got != 3 {
		t.Errorf("expected 3 slots for f2p, got %d", got)
	}
	if got := (SessionMetadata{}).SlotBudget(); got != 8 {
		t.Errorf("expected 8 slots for members, got %d", got)
	}
}

func TestNewTradeSessionStartItems(t *testing.T) {
	inv := Inventory{Items: []Item{
		{ID: 1511, Quantity: 20},
		{ID: 1511, Quantity: 5},
		{ID: CoinsItemID, Quantity: 1000},
	}}

	session := NewTradeSession("s1", "tester", EnvDev, time.Now(), 3500, inv)
	if session.Start.StartItems[1511] != 25 {
		t.Errorf("expected start items aggregated to 25, got %d", session.Start.StartItems[1511])
	}
	if session.Start.StartNetWorth != 3500 {
		t.Errorf("expected start net worth 3500, got %d", session.Start.StartNetWorth)
	}
	if len(session.ActiveOrders) != 0 || len(session.Orders) != 0 || len(session.Trades) != 0 {
		t.Error("new session must start with an empty ledger")
	}
}
