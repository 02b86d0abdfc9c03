package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PnlCalcData records the raw inputs a pnl computation consumed, so a
// snapshot can be audited against the market state it was derived from.
type PnlCalcData struct {
	TradeIDs  map[string][]string `json:"trade_ids"`
	Inventory Inventory           `json:"inv_snapshot"`
	Exchange  Exchange            `json:"exchange_snapshot"`
	Prices    map[int]LatestPrice `json:"prices_snapshot"`
}

// PnlSnapshot is one immutable pnl computation result, keyed by
// strategy. Appended to the session's rolling history, never mutated.
type PnlSnapshot struct {
	StratPnl   map[string]int64 `json:"strat_pnl"`
	CalcData   PnlCalcData      `json:"calc_data"`
	UpdateTime time.Time        `json:"update_time"`
}

// Pnl is the persisted per-session profit record: the running total
// plus every snapshot computed so far. Roi is the total expressed as a
// percentage of the session's starting net worth.
type Pnl struct {
	SessionID  string          `json:"session_id"`
	TotalPnl   int64           `json:"total_pnl"`
	Roi        decimal.Decimal `json:"roi"`
	Snapshots  []PnlSnapshot   `json:"pnl_snapshots"`
	UpdateTime time.Time       `json:"update_time"`
}

// NewPnl returns the empty history written at session creation.
func NewPnl(sessionID string, startTime time.Time) Pnl {
	return Pnl{
		SessionID:  sessionID,
		TotalPnl:   0,
		Roi:        decimal.Zero,
		Snapshots:  []PnlSnapshot{},
		UpdateTime: startTime,
	}
}
