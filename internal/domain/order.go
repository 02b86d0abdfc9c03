package domain

import (
	"strings"
	"time"
)

// OfferKind is the intent behind a submitted marketplace action.
type OfferKind uint8

const (
	OfferKindNotSpecified OfferKind = iota
	OfferKindCancelBuy
	OfferKindCancelSell
	OfferKindBuy
	OfferKindSell
)

var offerKindNames = map[OfferKind]string{
	OfferKindNotSpecified: "NOT_SPECIFIED",
	OfferKindCancelBuy:    "CANCEL_BUY",
	OfferKindCancelSell:   "CANCEL_SELL",
	OfferKindBuy:          "BUY",
	OfferKindSell:         "SELL",
}

func (k OfferKind) String() string {
	if name, ok := offerKindNames[k]; ok {
		return name
	}
	return "NOT_SPECIFIED"
}

// ParseOfferKind maps the wire representation to an OfferKind.
func ParseOfferKind(raw string) OfferKind {
	upper := strings.ToUpper(raw)
	for kind, name := range offerKindNames {
		if name == upper {
			return kind
		}
	}
	return OfferKindNotSpecified
}

func (k OfferKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OfferKind) UnmarshalText(text []byte) error {
	*k = ParseOfferKind(string(text))
	return nil
}

// TerminalState returns the slot state this kind of offer resolves to.
func (k OfferKind) TerminalState() SlotState {
	switch k {
	case OfferKindCancelBuy:
		return SlotStateCancelledBuy
	case OfferKindCancelSell:
		return SlotStateCancelledSell
	case OfferKindBuy:
		return SlotStateBought
	case OfferKindSell:
		return SlotStateSold
	default:
		return SlotStateNotSpecified
	}
}

// IsBuySide reports whether the offer acquires items for cash.
func (k OfferKind) IsBuySide() bool {
	return k == OfferKindBuy || k == OfferKindCancelBuy
}

// IsSellSide reports whether the offer exchanges items for cash.
func (k OfferKind) IsSellSide() bool {
	return k == OfferKindSell || k == OfferKindCancelSell
}

// OfferMetadata describes the offer a submitted order placed on the
// marketplace.
type OfferMetadata struct {
	Kind     OfferKind `json:"kind"`
	ItemID   int       `json:"item_id"`
	Price    int64     `json:"price"`
	Quantity int64     `json:"quantity"`
}

// Order is an immutable record of a previously submitted action. The
// book keeper owns it from registration until it is reconciled into a
// Trade.
type Order struct {
	ID        string        `json:"id"`
	CalcCycle int           `json:"calc_cycle"`
	StratName string        `json:"strat_name"`
	Slot      int           `json:"slot"`
	Metadata  OfferMetadata `json:"metadata"`
	Time      time.Time     `json:"time"`
}

// Trade is produced only by the book keeper matching a terminal slot to
// its active order. Transacted carries the quantity the marketplace
// actually filled, which may be less than the offer quantity.
type Trade struct {
	ID         string        `json:"id"`
	CalcCycle  int           `json:"calc_cycle"`
	StratName  string        `json:"strat_name"`
	Transacted int64         `json:"transacted"`
	Metadata   OfferMetadata `json:"metadata"`
	Time       time.Time     `json:"time"`
}
