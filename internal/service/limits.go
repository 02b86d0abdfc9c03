package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tdp_go/internal/domain"
	"tdp_go/internal/engine"
)

// Limits serves buy-limit queries scoped to an item container and
// delegates quota updates to the book keeper.
type Limits struct {
	store  domain.Store
	market domain.MarketProvider
	keeper *engine.BookKeeper
	log    *slog.Logger
}

// NewLimits wires the limits service.
func NewLimits(store domain.Store, market domain.MarketProvider, keeper *engine.BookKeeper, log *slog.Logger) *Limits {
	return &Limits{
		store:  store,
		market: market,
		keeper: keeper,
		log:    log,
	}
}

// Get returns the player's buy limits scoped to the container: ALL for
// every tracked item, EXCHANGE for items in non-empty slots, INVENTORY
// for held items except coins. A non-nil itemIDs filter keeps only the
// requested ids.
func (l *Limits) Get(ctx context.Context, playerName string, container domain.ItemContainer, itemIDs []int) (map[int]domain.BuyLimit, error) {
	limits := make(map[int]domain.BuyLimit)

	switch container {
	case domain.ItemContainerExchange:
		exchange, err := l.market.Exchange(ctx)
		if err != nil {
			return nil, err
		}
		for _, slot := range exchange.Slots {
			if slot.State == domain.SlotStateEmpty {
				continue
			}
			if _, seen := limits[slot.ItemID]; seen {
				continue
			}
			limit, err := l.store.BuyLimit(ctx, playerName, slot.ItemID)
			if err != nil {
				return nil, err
			}
			limits[slot.ItemID] = limit
		}
	case domain.ItemContainerInventory:
		inv, err := l.market.Inventory(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range inv.Items {
			if item.ID == domain.CoinsItemID {
				continue
			}
			if _, seen := limits[item.ID]; seen {
				continue
			}
			limit, err := l.store.BuyLimit(ctx, playerName, item.ID)
			if err != nil {
				return nil, err
			}
			limits[item.ID] = limit
		}
	case domain.ItemContainerAll:
		all, err := l.store.AllBuyLimits(ctx, playerName)
		if err != nil {
			return nil, err
		}
		limits = all
	default:
		return nil, fmt.Errorf("cannot resolve item container %d", container)
	}

	if itemIDs != nil {
		wanted := make(map[int]bool, len(itemIDs))
		for _, id := range itemIDs {
			wanted[id] = true
		}
		filtered := make(map[int]domain.BuyLimit)
		for id, limit := range limits {
			if wanted[id] {
				filtered[id] = limit
			}
		}
		limits = filtered
	}

	return limits, nil
}

// Update advances the player's buy limits one polling cycle.
func (l *Limits) Update(ctx context.Context, playerName string, now time.Time) error {
	l.log.Info("updating buy limits",
		slog.String("player", playerName),
		slog.Time("time", now),
	)
	return l.keeper.UpdateLimits(ctx, playerName, now)
}
