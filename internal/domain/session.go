package domain

import (
	"strings"
	"time"
)

// Environment tags the deployment a session was traded in.
type Environment string

const (
	EnvDev  Environment = "DEV"
	EnvProd Environment = "PROD"
)

// ParseEnvironment defaults to DEV for unknown values.
func ParseEnvironment(raw string) Environment {
	if strings.ToUpper(raw) == string(EnvProd) {
		return EnvProd
	}
	return EnvDev
}

// StartMetadata captures the state of the world when a session began.
// StartItems maps item id to the quantity held at session start.
type StartMetadata struct {
	StartTime     time.Time     `json:"start_time"`
	StartNetWorth int64         `json:"start_nw"`
	StartItems    map[int]int64 `json:"start_items"`
}

// TradeSession is the ledger aggregate for one trading run: the active
// order table plus every order and trade booked so far, grouped by the
// strategy that produced them. The write path mutates it continuously;
// the metrics path only reads it.
type TradeSession struct {
	SessionID    string             `json:"session_id"`
	PlayerName   string             `json:"player_name"`
	Env          Environment        `json:"env"`
	Start        StartMetadata      `json:"start_metadata"`
	ActiveOrders map[int]Order      `json:"active_orders"`
	Orders       map[string][]Order `json:"orders"`
	Trades       map[string][]Trade `json:"trades"`
}

// NewTradeSession builds an empty session ledger. Start items are
// aggregated from the inventory observed at session start.
func NewTradeSession(sessionID, playerName string, env Environment, startTime time.Time, startNetWorth int64, inv Inventory) TradeSession {
	startItems := make(map[int]int64)
	for _, item := range inv.Items {
		startItems[item.ID] += item.Quantity
	}

	return TradeSession{
		SessionID:  sessionID,
		PlayerName: playerName,
		Env:        env,
		Start: StartMetadata{
			StartTime:     startTime,
			StartNetWorth: startNetWorth,
			StartItems:    startItems,
		},
		ActiveOrders: make(map[int]Order),
		Orders:       make(map[string][]Order),
		Trades:       make(map[string][]Trade),
	}
}

// SessionMetadata is the game client's description of the live play
// session, served by the market provider.
type SessionMetadata struct {
	ID         string    `json:"id"`
	PlayerName string    `json:"player_name"`
	StartTime  time.Time `json:"start_time"`
	IsF2p      bool      `json:"is_f2p"`
}

// SlotBudget returns how many exchange slots the account may use:
// free-to-play accounts get 3, members get 8.
func (m SessionMetadata) SlotBudget() int {
	if m.IsF2p {
		return 3
	}
	return 8
}
