package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a collaborator call failure that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "gds get /exchange")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// KeyNotFoundError is returned when the store has no value for a key.
// The caller may retry later: the entity may simply not exist yet.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return "key " + e.Key + " not found in store"
}

func (e *KeyNotFoundError) IsRetriable() bool {
	return true
}

// UnbookedOrderError is returned when an order is registered into a
// slot that still holds an active order. The caller violated the
// sequencing contract: trades must be booked before a slot is reused.
// Never retried.
type UnbookedOrderError struct {
	PrevOrder Order
	NewOrder  Order
}

func (e *UnbookedOrderError) Error() string {
	return fmt.Sprintf("slot %d still holds unbooked order %s, cannot register order %s",
		e.NewOrder.Slot, e.PrevOrder.ID, e.NewOrder.ID)
}

func (e *UnbookedOrderError) IsRetriable() bool {
	return false
}

// UnexpectedOfferError is returned when a terminal exchange slot has no
// matching active order, or the active order's metadata disagrees with
// the slot. The internal model has diverged from the marketplace;
// reconciliation must halt rather than guess. Never retried.
type UnexpectedOfferError struct {
	Slot  ExchangeSlot
	Order *Order
}

func (e *UnexpectedOfferError) Error() string {
	if e.Order == nil {
		return fmt.Sprintf("exchange slot %d resolved to %s with no matching active order (item=%d price=%d total=%d)",
			e.Slot.Position, e.Slot.State, e.Slot.ItemID, e.Slot.Price, e.Slot.TotalQuantity)
	}
	return fmt.Sprintf("exchange slot %d resolved to %s but active order %s is %s (item=%d price=%d qty=%d)",
		e.Slot.Position, e.Slot.State, e.Order.ID, e.Order.Metadata.Kind,
		e.Order.Metadata.ItemID, e.Order.Metadata.Price, e.Order.Metadata.Quantity)
}

func (e *UnexpectedOfferError) IsRetriable() bool {
	return false
}

// ConservationError is returned when the item accounting identity
// start + traded == held + pending does not balance for an item.
// Treated as data corruption; never retried.
type ConservationError struct {
	ItemID     int
	StartQty   int64
	TradedQty  int64
	HeldQty    int64
	PendingQty int64
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("item %d quantity conservation violated: start %d + traded %d != held %d + pending %d",
		e.ItemID, e.StartQty, e.TradedQty, e.HeldQty, e.PendingQty)
}

func (e *ConservationError) IsRetriable() bool {
	return false
}

var (
	// ErrSessionExists is returned when creating a trade session whose id is already taken.
	ErrSessionExists = errors.New("trade session already exists")

	// ErrUnexpectedSlotState is returned when a non-empty slot carries a state the
	// metrics math has no valuation rule for.
	ErrUnexpectedSlotState = errors.New("unexpected exchange slot state")

	// ErrUnexpectedOfferKind is returned when a trade carries an offer kind outside
	// the four known intents.
	ErrUnexpectedOfferKind = errors.New("unexpected offer kind")

	// ErrNoReferencePrice is returned when an exchange slot holds an item the price
	// provider has no quote for.
	ErrNoReferencePrice = errors.New("no reference price for item")
)
