package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tdp_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvEntry is one serialized blob under a flat key.
type kvEntry struct {
	Key       string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// hashEntry is one field of a keyed hash.
type hashEntry struct {
	Key       string `gorm:"primaryKey"`
	Field     string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}

// Store persists sessions, buy limits, snapshot baselines and pnl
// history behind get/set/hash primitives. It is safe for concurrent
// use, but offers no transaction across separate calls: multi-step
// updates (book keeper appends, then rewrites the active table) have a
// documented crash window between the two writes.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path, creating directories
// and migrating the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&kvEntry{}, &hashEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func sessionKey(sessionID string) string  { return "session:" + sessionID }
func pnlKey(sessionID string) string      { return "pnl:" + sessionID }
func validityKey(sessionID string) string { return "valid:" + sessionID }
func exchangeKey(playerName string) string {
	return "exchange:" + playerName
}
func limitsKey(playerName string) string { return "limits:" + playerName }

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	var entry kvEntry
	err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.KeyNotFoundError{Key: key}
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (s *Store) set(ctx context.Context, key string, value []byte) error {
	entry := kvEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
}

func (s *Store) hashGet(ctx context.Context, key, field string) ([]byte, error) {
	var entry hashEntry
	err := s.db.WithContext(ctx).First(&entry, "key = ? AND field = ?", key, field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.KeyNotFoundError{Key: key + ":" + field}
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (s *Store) hashGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	var entries []hashEntry
	if err := s.db.WithContext(ctx).Find(&entries, "key = ?", key).Error; err != nil {
		return nil, err
	}
	fields := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		fields[entry.Field] = entry.Value
	}
	return fields, nil
}

func (s *Store) hashSetAll(ctx context.Context, key string, fields map[string][]byte) error {
	entries := make([]hashEntry, 0, len(fields))
	now := time.Now()
	for field, value := range fields {
		entries = append(entries, hashEntry{Key: key, Field: field, Value: value, UpdatedAt: now})
	}
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entries).Error
}

// TradeSession loads the full session aggregate.
func (s *Store) TradeSession(ctx context.Context, sessionID string) (domain.TradeSession, error) {
	raw, err := s.get(ctx, sessionKey(sessionID))
	if err != nil {
		return domain.TradeSession{}, err
	}
	var session domain.TradeSession
	if err := decode(tradeSessionVersion, raw, &session); err != nil {
		return domain.TradeSession{}, err
	}
	return session, nil
}

// SetTradeSession overwrites the session aggregate.
func (s *Store) SetTradeSession(ctx context.Context, session domain.TradeSession) error {
	raw, err := encode(tradeSessionVersion, session)
	if err != nil {
		return err
	}
	return s.set(ctx, sessionKey(session.SessionID), raw)
}

// DeleteSession removes the session aggregate, its pnl history and its
// validity flag.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	keys := []string{sessionKey(sessionID), pnlKey(sessionID), validityKey(sessionID)}
	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&kvEntry{}).Error
}

func (s *Store) mutateSession(ctx context.Context, sessionID string, mutate func(*domain.TradeSession)) error {
	session, err := s.TradeSession(ctx, sessionID)
	if err != nil {
		return err
	}
	mutate(&session)
	return s.SetTradeSession(ctx, session)
}

// ActiveOrders returns the slot-to-order table of the session.
func (s *Store) ActiveOrders(ctx context.Context, sessionID string) (map[int]domain.Order, error) {
	session, err := s.TradeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ActiveOrders == nil {
		return make(map[int]domain.Order), nil
	}
	return session.ActiveOrders, nil
}

// SetActiveOrders rewrites the slot-to-order table of the session.
func (s *Store) SetActiveOrders(ctx context.Context, sessionID string, active map[int]domain.Order) error {
	return s.mutateSession(ctx, sessionID, func(session *domain.TradeSession) {
		session.ActiveOrders = active
	})
}

// AppendOrders adds booked orders to the session's per-strategy order
// history.
func (s *Store) AppendOrders(ctx context.Context, sessionID string, orders map[string][]domain.Order) error {
	return s.mutateSession(ctx, sessionID, func(session *domain.TradeSession) {
		if session.Orders == nil {
			session.Orders = make(map[string][]domain.Order)
		}
		for strat, list := range orders {
			session.Orders[strat] = append(session.Orders[strat], list...)
		}
	})
}

// Orders returns the session's booked orders grouped by strategy.
func (s *Store) Orders(ctx context.Context, sessionID string) (map[string][]domain.Order, error) {
	session, err := s.TradeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Orders == nil {
		return make(map[string][]domain.Order), nil
	}
	return session.Orders, nil
}

// AppendTrades adds booked trades to the session's per-strategy trade
// history.
func (s *Store) AppendTrades(ctx context.Context, sessionID string, trades map[string][]domain.Trade) error {
	return s.mutateSession(ctx, sessionID, func(session *domain.TradeSession) {
		if session.Trades == nil {
			session.Trades = make(map[string][]domain.Trade)
		}
		for strat, list := range trades {
			session.Trades[strat] = append(session.Trades[strat], list...)
		}
	})
}

// Trades returns the session's booked trades grouped by strategy.
func (s *Store) Trades(ctx context.Context, sessionID string) (map[string][]domain.Trade, error) {
	session, err := s.TradeSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Trades == nil {
		return make(map[string][]domain.Trade), nil
	}
	return session.Trades, nil
}

// ExchangeSnapshot loads the previous-poll exchange baseline.
func (s *Store) ExchangeSnapshot(ctx context.Context, playerName string) (domain.Exchange, error) {
	raw, err := s.get(ctx, exchangeKey(playerName))
	if err != nil {
		return domain.Exchange{}, err
	}
	var exchange domain.Exchange
	if err := decode(exchangeVersion, raw, &exchange); err != nil {
		return domain.Exchange{}, err
	}
	return exchange, nil
}

// SetExchangeSnapshot stores the exchange baseline for the next diff.
func (s *Store) SetExchangeSnapshot(ctx context.Context, playerName string, exchange domain.Exchange) error {
	raw, err := encode(exchangeVersion, exchange)
	if err != nil {
		return err
	}
	return s.set(ctx, exchangeKey(playerName), raw)
}

// BuyLimit loads one item's quota counter from the per-player hash.
func (s *Store) BuyLimit(ctx context.Context, playerName string, itemID int) (domain.BuyLimit, error) {
	raw, err := s.hashGet(ctx, limitsKey(playerName), strconv.Itoa(itemID))
	if err != nil {
		return domain.BuyLimit{}, err
	}
	var limit domain.BuyLimit
	if err := decode(buyLimitVersion, raw, &limit); err != nil {
		return domain.BuyLimit{}, err
	}
	return limit, nil
}

// AllBuyLimits loads every tracked quota counter for the player.
func (s *Store) AllBuyLimits(ctx context.Context, playerName string) (map[int]domain.BuyLimit, error) {
	fields, err := s.hashGetAll(ctx, limitsKey(playerName))
	if err != nil {
		return nil, err
	}
	limits := make(map[int]domain.BuyLimit, len(fields))
	for field, raw := range fields {
		itemID, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("corrupt buy limit field %q: %w", field, err)
		}
		var limit domain.BuyLimit
		if err := decode(buyLimitVersion, raw, &limit); err != nil {
			return nil, err
		}
		limits[itemID] = limit
	}
	return limits, nil
}

// SetAllBuyLimits writes the player's quota counters into the hash.
func (s *Store) SetAllBuyLimits(ctx context.Context, playerName string, limits map[int]domain.BuyLimit) error {
	fields := make(map[string][]byte, len(limits))
	for itemID, limit := range limits {
		raw, err := encode(buyLimitVersion, limit)
		if err != nil {
			return err
		}
		fields[strconv.Itoa(itemID)] = raw
	}
	return s.hashSetAll(ctx, limitsKey(playerName), fields)
}

// Pnl loads the session's pnl history.
func (s *Store) Pnl(ctx context.Context, sessionID string) (domain.Pnl, error) {
	raw, err := s.get(ctx, pnlKey(sessionID))
	if err != nil {
		return domain.Pnl{}, err
	}
	var pnl domain.Pnl
	if err := decode(pnlVersion, raw, &pnl); err != nil {
		return domain.Pnl{}, err
	}
	return pnl, nil
}

// SetPnl overwrites the session's pnl history.
func (s *Store) SetPnl(ctx context.Context, sessionID string, pnl domain.Pnl) error {
	raw, err := encode(pnlVersion, pnl)
	if err != nil {
		return err
	}
	return s.set(ctx, pnlKey(sessionID), raw)
}

// SessionValidity reads the write path's in-progress flag. A missing
// flag reads as invalid.
func (s *Store) SessionValidity(ctx context.Context, sessionID string) (bool, error) {
	raw, err := s.get(ctx, validityKey(sessionID))
	if err != nil {
		var notFound *domain.KeyNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	var valid bool
	if err := decode(validityVersion, raw, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

// SetSessionValidity flips the write path's in-progress flag.
func (s *Store) SetSessionValidity(ctx context.Context, sessionID string, valid bool) error {
	raw, err := encode(validityVersion, valid)
	if err != nil {
		return err
	}
	return s.set(ctx, validityKey(sessionID), raw)
}
