package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tdp_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// DefaultLockAttempts and DefaultLockWait bound the soft-lock poll:
	// the reader waits at most attempts*wait for the write path to
	// finish a cycle, then proceeds regardless.
	DefaultLockAttempts = 10
	DefaultLockWait     = 5 * time.Second
)

// Metrics is the read-path engine: net worth and per-strategy pnl over
// the session ledger, live inventory/market state and reference prices.
// It never mutates the active-order table; its only write is appending
// pnl snapshots to history.
type Metrics struct {
	store  domain.Store
	market domain.MarketProvider
	prices domain.PriceProvider
	log    *slog.Logger

	lockAttempts int
	lockWait     time.Duration
	sleep        func(time.Duration)
}

// NewMetrics wires the metrics engine. Non-positive lock parameters
// fall back to the defaults.
func NewMetrics(store domain.Store, market domain.MarketProvider, prices domain.PriceProvider, log *slog.Logger, lockAttempts int, lockWait time.Duration) *Metrics {
	if lockAttempts <= 0 {
		lockAttempts = DefaultLockAttempts
	}
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Metrics{
		store:        store,
		market:       market,
		prices:       prices,
		log:          log,
		lockAttempts: lockAttempts,
		lockWait:     lockWait,
		sleep:        time.Sleep,
	}
}

// waitForSession is the soft lock: poll the session validity flag for a
// bounded number of attempts while the write path is mid-cycle. It is a
// best-effort staleness reducer, not a mutex. After the attempt budget
// the read proceeds against possibly mid-mutation state.
func (m *Metrics) waitForSession(ctx context.Context, sessionID string) {
	for attempt := 1; attempt <= m.lockAttempts; attempt++ {
		valid, err := m.store.SessionValidity(ctx, sessionID)
		if err != nil {
			m.log.Warn("session validity read failed", slog.String("session_id", sessionID), slog.Any("error", err))
			return
		}
		if valid {
			return
		}
		m.log.Info("session locked by write path, waiting",
			slog.String("session_id", sessionID),
			slog.Int("attempt", attempt),
		)
		m.sleep(m.lockWait)
	}
}

// ComputeNetWorth values the inventory plus every non-empty exchange
// slot. Coins value 1:1. Buy-side slots hold transacted items at
// reference price plus cash still reserved for the unfilled remainder
// at the offer price; sell-side slots hold the unsold remainder at
// reference price plus cash already received at the offer price.
// Pure summation, order independent.
func ComputeNetWorth(inv domain.Inventory, exchange domain.Exchange, prices map[int]domain.LatestPrice) (int64, error) {
	var nw int64

	for _, item := range inv.Items {
		if item.ID == domain.CoinsItemID {
			nw += item.Quantity
		} else if price, ok := prices[item.ID]; ok {
			nw += item.Quantity * price.Low
		}
	}

	for _, slot := range exchange.Slots {
		if slot.State == domain.SlotStateEmpty {
			continue
		}

		var itemPrice int64
		if slot.ItemID == domain.CoinsItemID {
			itemPrice = 1
		} else {
			price, ok := prices[slot.ItemID]
			if !ok {
				return 0, fmt.Errorf("%w: item %d in slot %d", domain.ErrNoReferencePrice, slot.ItemID, slot.Position)
			}
			itemPrice = price.Low
		}

		switch slot.State {
		case domain.SlotStateCancelledBuy, domain.SlotStateBuying, domain.SlotStateBought:
			nw += slot.QuantityTransacted * itemPrice
			nw += (slot.TotalQuantity - slot.QuantityTransacted) * slot.Price
		case domain.SlotStateCancelledSell, domain.SlotStateSelling, domain.SlotStateSold:
			nw += (slot.TotalQuantity - slot.QuantityTransacted) * itemPrice
			nw += slot.QuantityTransacted * slot.Price
		default:
			return 0, fmt.Errorf("%w: slot %d is %s", domain.ErrUnexpectedSlotState, slot.Position, slot.State)
		}
	}

	return nw, nil
}

// checkConservation validates the accounting identity for every item
// that appears in a trade: starting quantity plus signed traded
// quantity must equal current held quantity plus the totals committed
// to sell-side slots.
func checkConservation(trades map[string][]domain.Trade, startItems map[int]int64, inv domain.Inventory, exchange domain.Exchange) error {
	held := inv.Quantities()

	pending := make(map[int]int64)
	for _, slot := range exchange.Slots {
		switch slot.State {
		case domain.SlotStateCancelledSell, domain.SlotStateSelling, domain.SlotStateSold:
			pending[slot.ItemID] += slot.TotalQuantity
		}
	}

	traded := make(map[int]int64)
	for _, list := range trades {
		for _, trade := range list {
			switch {
			case trade.Metadata.Kind.IsBuySide():
				traded[trade.Metadata.ItemID] += trade.Transacted
			case trade.Metadata.Kind.IsSellSide():
				traded[trade.Metadata.ItemID] -= trade.Transacted
			default:
				return fmt.Errorf("%w: %s on trade %s", domain.ErrUnexpectedOfferKind, trade.Metadata.Kind, trade.ID)
			}
		}
	}

	for itemID, tradedQty := range traded {
		startQty := startItems[itemID]
		if startQty+tradedQty != held[itemID]+pending[itemID] {
			return &domain.ConservationError{
				ItemID:     itemID,
				StartQty:   startQty,
				TradedQty:  tradedQty,
				HeldQty:    held[itemID],
				PendingQty: pending[itemID],
			}
		}
	}
	return nil
}

// calcPnl computes one pnl snapshot from the session ledger and live
// market data. Per strategy and per item, the signed offer cash flow is
// accumulated; any residual positive quantity is unsold inventory and
// is marked at the latest low price.
func calcPnl(session domain.TradeSession, inv domain.Inventory, exchange domain.Exchange, prices map[int]domain.LatestPrice, now time.Time) (domain.PnlSnapshot, error) {
	if err := checkConservation(session.Trades, session.Start.StartItems, inv, exchange); err != nil {
		return domain.PnlSnapshot{}, err
	}

	strats := make(map[string]bool)
	for strat := range session.Trades {
		strats[strat] = true
	}
	for _, order := range session.ActiveOrders {
		strats[order.StratName] = true
	}

	stratPnl := make(map[string]int64, len(strats))
	tradeIDs := make(map[string][]string)
	for strat := range strats {
		itemTrades := make(map[int][]domain.Trade)
		for _, trade := range session.Trades[strat] {
			itemTrades[trade.Metadata.ItemID] = append(itemTrades[trade.Metadata.ItemID], trade)
		}

		var pnl int64
		for itemID, trades := range itemTrades {
			var itemPnl, totalQty int64
			for _, trade := range trades {
				gp := trade.Metadata.Quantity * trade.Metadata.Price
				switch {
				case trade.Metadata.Kind.IsBuySide():
					itemPnl -= gp
					totalQty += trade.Metadata.Quantity
				case trade.Metadata.Kind.IsSellSide():
					itemPnl += gp
					totalQty -= trade.Metadata.Quantity
				default:
					return domain.PnlSnapshot{}, fmt.Errorf("%w: %s on trade %s", domain.ErrUnexpectedOfferKind, trade.Metadata.Kind, trade.ID)
				}
				tradeIDs[strat] = append(tradeIDs[strat], trade.ID)
			}

			if totalQty > 0 {
				price, ok := prices[itemID]
				if !ok {
					return domain.PnlSnapshot{}, fmt.Errorf("%w: item %d", domain.ErrNoReferencePrice, itemID)
				}
				itemPnl += totalQty * price.Low
			}
			pnl += itemPnl
		}
		stratPnl[strat] = pnl
	}

	return domain.PnlSnapshot{
		StratPnl: stratPnl,
		CalcData: domain.PnlCalcData{
			TradeIDs:  tradeIDs,
			Inventory: inv,
			Exchange:  exchange,
			Prices:    prices,
		},
		UpdateTime: now,
	}, nil
}

// Pnl computes a fresh pnl snapshot for the session, appends it to the
// persisted history and returns the updated record. Reads pass through
// the soft lock first.
func (m *Metrics) Pnl(ctx context.Context, sessionID string) (domain.Pnl, error) {
	m.waitForSession(ctx, sessionID)

	session, err := m.store.TradeSession(ctx, sessionID)
	if err != nil {
		return domain.Pnl{}, err
	}
	inv, err := m.market.Inventory(ctx)
	if err != nil {
		return domain.Pnl{}, err
	}
	exchange, err := m.market.Exchange(ctx)
	if err != nil {
		return domain.Pnl{}, err
	}
	prices, err := m.prices.LatestPrices(ctx)
	if err != nil {
		return domain.Pnl{}, err
	}

	now := time.Now()
	snapshot, err := calcPnl(session, inv, exchange, prices, now)
	if err != nil {
		return domain.Pnl{}, err
	}

	pnl, err := m.store.Pnl(ctx, sessionID)
	if err != nil {
		return domain.Pnl{}, err
	}

	var total int64
	for _, stratPnl := range snapshot.StratPnl {
		total += stratPnl
	}

	pnl.TotalPnl = total
	pnl.Roi = roi(total, session.Start.StartNetWorth)
	pnl.Snapshots = append(pnl.Snapshots, snapshot)
	pnl.UpdateTime = now

	if err := m.store.SetPnl(ctx, sessionID, pnl); err != nil {
		return domain.Pnl{}, err
	}
	return pnl, nil
}

// NetWorth values the player's current holdings through the soft lock.
func (m *Metrics) NetWorth(ctx context.Context, sessionID string) (int64, error) {
	m.waitForSession(ctx, sessionID)

	inv, err := m.market.Inventory(ctx)
	if err != nil {
		return 0, err
	}
	exchange, err := m.market.Exchange(ctx)
	if err != nil {
		return 0, err
	}
	prices, err := m.prices.LatestPrices(ctx)
	if err != nil {
		return 0, err
	}

	return ComputeNetWorth(inv, exchange, prices)
}

// roi is the pnl as a percentage of starting net worth, rounded to two
// decimal places.
func roi(totalPnl, startNetWorth int64) decimal.Decimal {
	if startNetWorth == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(totalPnl).
		Div(decimal.NewFromInt(startNetWorth)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
