package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tdp_go/internal/domain"
)

// DefaultResetWindow is how long a purchase keeps an item's buy limit
// counting before it may reset.
const DefaultResetWindow = 4 * time.Hour

// BookKeeper is the write-path reconciliation core. It diffs market
// snapshots into quota updates and converts terminal slot states into
// immutable trades against the active-order table. It is the only
// component that mutates the active-order lifecycle and it expects to
// run from one sequential loop per session.
type BookKeeper struct {
	store       domain.Store
	market      domain.MarketProvider
	log         *slog.Logger
	resetWindow time.Duration
}

// NewBookKeeper wires the reconciliation core. A non-positive window
// falls back to DefaultResetWindow.
func NewBookKeeper(store domain.Store, market domain.MarketProvider, log *slog.Logger, resetWindow time.Duration) *BookKeeper {
	if resetWindow <= 0 {
		resetWindow = DefaultResetWindow
	}
	return &BookKeeper{
		store:       store,
		market:      market,
		log:         log,
		resetWindow: resetWindow,
	}
}

// CalcSlotDiffs computes the per-item bought-quantity deltas between
// two exchange snapshots. Only slots currently buying or bought count.
// If a slot still holds the same offer and its transacted quantity did
// not go backward, the delta is incremental; otherwise the slot was
// replaced between polls and the full current transacted quantity is a
// fresh purchase.
func CalcSlotDiffs(prev, cur domain.Exchange) map[int][]int64 {
	diffs := make(map[int][]int64)

	for i, curSlot := range cur.Slots {
		if curSlot.State != domain.SlotStateBuying && curSlot.State != domain.SlotStateBought {
			continue
		}

		bought := curSlot.QuantityTransacted
		if i < len(prev.Slots) {
			prevSlot := prev.Slots[i]
			if curSlot.SameOffer(prevSlot) && curSlot.QuantityTransacted >= prevSlot.QuantityTransacted {
				bought = curSlot.QuantityTransacted - prevSlot.QuantityTransacted
			}
		}
		diffs[curSlot.ItemID] = append(diffs[curSlot.ItemID], bought)
	}

	return diffs
}

// loadPrevExchange returns the stored snapshot baseline, seeding it
// from the live market on the first poll.
func (b *BookKeeper) loadPrevExchange(ctx context.Context, playerName string) (domain.Exchange, error) {
	prev, err := b.store.ExchangeSnapshot(ctx, playerName)
	if err == nil {
		return prev, nil
	}
	var notFound *domain.KeyNotFoundError
	if !errors.As(err, &notFound) {
		return domain.Exchange{}, err
	}

	prev, err = b.market.Exchange(ctx)
	if err != nil {
		return domain.Exchange{}, err
	}
	if err := b.store.SetExchangeSnapshot(ctx, playerName, prev); err != nil {
		return domain.Exchange{}, err
	}
	return prev, nil
}

// UpdateLimits advances every tracked buy limit one polling cycle:
// items with purchase deltas accumulate and push their reset time
// forward, items with no activity whose reset time has elapsed are
// zeroed. The scan covers all tracked limits, not just the diff map,
// so zero-activity items still age out.
func (b *BookKeeper) UpdateLimits(ctx context.Context, playerName string, now time.Time) error {
	prev, err := b.loadPrevExchange(ctx, playerName)
	if err != nil {
		return err
	}
	cur, err := b.market.Exchange(ctx)
	if err != nil {
		return err
	}

	diffs := CalcSlotDiffs(prev, cur)

	limits, err := b.store.AllBuyLimits(ctx, playerName)
	if err != nil {
		return err
	}

	for itemID, limit := range limits {
		if itemDiffs, ok := diffs[itemID]; ok {
			for _, bought := range itemDiffs {
				limit.Bought += bought
				if limit.ResetTime == nil || limit.ResetTime.Before(now) {
					reset := now.Add(b.resetWindow)
					limit.ResetTime = &reset
				}
			}
		} else if limit.ResetTime != nil && limit.ResetTime.Before(now) {
			limit.ResetTime = nil
			limit.Bought = 0
		}
		limits[itemID] = limit
	}

	if err := b.store.SetAllBuyLimits(ctx, playerName, limits); err != nil {
		return err
	}
	return b.store.SetExchangeSnapshot(ctx, playerName, cur)
}

// SaveOrders registers newly submitted orders into the active table.
// A slot that still holds an unbooked order is a caller sequencing bug
// and fails with *UnbookedOrderError before anything is persisted.
// The order history append and the active-table write are two store
// operations; a crash between them leaves the order in history but not
// active.
func (b *BookKeeper) SaveOrders(ctx context.Context, sessionID string, orders map[string][]domain.Order) error {
	active, err := b.store.ActiveOrders(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, list := range orders {
		for _, order := range list {
			if prev, occupied := active[order.Slot]; occupied {
				return &domain.UnbookedOrderError{PrevOrder: prev, NewOrder: order}
			}
			active[order.Slot] = order
		}
	}

	if err := b.store.AppendOrders(ctx, sessionID, orders); err != nil {
		return err
	}
	return b.store.SetActiveOrders(ctx, sessionID, active)
}

// matchesOffer verifies the offer-matching rule: the order's kind maps
// to the slot's terminal state, and slot position, item, price and
// total quantity all equal the order's metadata.
func matchesOffer(slot domain.ExchangeSlot, order domain.Order) bool {
	return order.Metadata.Kind.TerminalState() == slot.State &&
		slot.Position == order.Slot &&
		slot.ItemID == order.Metadata.ItemID &&
		slot.Price == order.Metadata.Price &&
		slot.TotalQuantity == order.Metadata.Quantity
}

// BookTrades reconciles the current market snapshot against the active
// order table. Every slot in a terminal state must match its recorded
// active order exactly; a missing or mismatched order means the
// internal model diverged from the marketplace and reconciliation
// halts with *UnexpectedOfferError, leaving the table untouched.
// Matched slots emit a trade carrying the actually transacted quantity
// and drop out of the table. The trade append and the active-table
// rewrite are two store operations with a documented crash window
// between them.
func (b *BookKeeper) BookTrades(ctx context.Context, sessionID string, calcCycle int, now time.Time) (map[string][]domain.Trade, error) {
	active, err := b.store.ActiveOrders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	exchange, err := b.market.Exchange(ctx)
	if err != nil {
		return nil, err
	}

	trades := make(map[string][]domain.Trade)
	for _, slot := range exchange.Slots {
		switch slot.State {
		case domain.SlotStateEmpty, domain.SlotStateBuying, domain.SlotStateSelling:
			continue
		}

		order, ok := active[slot.Position]
		if !ok {
			return nil, &domain.UnexpectedOfferError{Slot: slot}
		}
		if !matchesOffer(slot, order) {
			return nil, &domain.UnexpectedOfferError{Slot: slot, Order: &order}
		}

		trades[order.StratName] = append(trades[order.StratName], domain.Trade{
			ID:         order.ID,
			CalcCycle:  calcCycle,
			StratName:  order.StratName,
			Transacted: slot.QuantityTransacted,
			Metadata:   order.Metadata,
			Time:       now,
		})
		delete(active, slot.Position)

		b.log.Info("booked trade",
			slog.String("session_id", sessionID),
			slog.String("order_id", order.ID),
			slog.String("strat", order.StratName),
			slog.Int("slot", slot.Position),
			slog.Int64("transacted", slot.QuantityTransacted),
		)
	}

	if err := b.store.AppendTrades(ctx, sessionID, trades); err != nil {
		return nil, err
	}
	if err := b.store.SetActiveOrders(ctx, sessionID, active); err != nil {
		return nil, err
	}
	return trades, nil
}
