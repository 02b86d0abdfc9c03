package domain

import "context"

// MarketProvider serves the live market and inventory state the game
// client reports. All calls are synchronous snapshots.
type MarketProvider interface {
	Exchange(ctx context.Context) (Exchange, error)
	Inventory(ctx context.Context) (Inventory, error)
	SessionMetadata(ctx context.Context) (SessionMetadata, error)
}

// PriceProvider serves per-item reference prices and the static item
// mapping.
type PriceProvider interface {
	LatestPrices(ctx context.Context) (map[int]LatestPrice, error)
	AvgPrices(ctx context.Context, window PriceWindow) (map[int]AvgPrice, error)
	ItemMap(ctx context.Context) (map[int]ItemMetadata, error)
}

// Store is the persisted session/quota state behind the book keeper and
// the metrics path. Missing keys surface as *KeyNotFoundError. The
// session aggregate is one serialized object per session id; limits are
// a per-player hash keyed by item id; the exchange snapshot is a
// per-player blob. Multi-step callers get no transaction across calls.
type Store interface {
	TradeSession(ctx context.Context, sessionID string) (TradeSession, error)
	SetTradeSession(ctx context.Context, session TradeSession) error
	DeleteSession(ctx context.Context, sessionID string) error

	ActiveOrders(ctx context.Context, sessionID string) (map[int]Order, error)
	SetActiveOrders(ctx context.Context, sessionID string, active map[int]Order) error
	AppendOrders(ctx context.Context, sessionID string, orders map[string][]Order) error
	Orders(ctx context.Context, sessionID string) (map[string][]Order, error)
	AppendTrades(ctx context.Context, sessionID string, trades map[string][]Trade) error
	Trades(ctx context.Context, sessionID string) (map[string][]Trade, error)

	ExchangeSnapshot(ctx context.Context, playerName string) (Exchange, error)
	SetExchangeSnapshot(ctx context.Context, playerName string, exchange Exchange) error

	BuyLimit(ctx context.Context, playerName string, itemID int) (BuyLimit, error)
	AllBuyLimits(ctx context.Context, playerName string) (map[int]BuyLimit, error)
	SetAllBuyLimits(ctx context.Context, playerName string, limits map[int]BuyLimit) error

	Pnl(ctx context.Context, sessionID string) (Pnl, error)
	SetPnl(ctx context.Context, sessionID string, pnl Pnl) error

	SessionValidity(ctx context.Context, sessionID string) (bool, error)
	SetSessionValidity(ctx context.Context, sessionID string, valid bool) error
}
