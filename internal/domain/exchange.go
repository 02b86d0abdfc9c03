package domain

import "strings"

// SlotState is the externally reported state of a single exchange slot.
type SlotState uint8

const (
	SlotStateNotSpecified SlotState = iota
	SlotStateEmpty
	SlotStateCancelledBuy
	SlotStateBuying
	SlotStateBought
	SlotStateCancelledSell
	SlotStateSelling
	SlotStateSold
)

var slotStateNames = map[SlotState]string{
	SlotStateNotSpecified:  "NOT_SPECIFIED",
	SlotStateEmpty:         "EMPTY",
	SlotStateCancelledBuy:  "CANCELLED_BUY",
	SlotStateBuying:        "BUYING",
	SlotStateBought:        "BOUGHT",
	SlotStateCancelledSell: "CANCELLED_SELL",
	SlotStateSelling:       "SELLING",
	SlotStateSold:          "SOLD",
}

func (s SlotState) String() string {
	if name, ok := slotStateNames[s]; ok {
		return name
	}
	return "NOT_SPECIFIED"
}

// ParseSlotState maps the wire representation to a SlotState.
// Unknown values resolve to NOT_SPECIFIED rather than an error.
func ParseSlotState(raw string) SlotState {
	upper := strings.ToUpper(raw)
	for state, name := range slotStateNames {
		if name == upper {
			return state
		}
	}
	return SlotStateNotSpecified
}

// IsTerminal reports whether the slot will not change further without
// new input being submitted.
func (s SlotState) IsTerminal() bool {
	switch s {
	case SlotStateCancelledBuy, SlotStateBought, SlotStateCancelledSell, SlotStateSold:
		return true
	default:
		return false
	}
}

func (s SlotState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SlotState) UnmarshalText(text []byte) error {
	*s = ParseSlotState(string(text))
	return nil
}

// ExchangeSlot is one offer slot of the marketplace, refreshed every
// polling cycle. It is never persisted except as the previous-snapshot
// baseline for delta computation.
type ExchangeSlot struct {
	Position            int       `json:"position"`
	ItemID              int       `json:"item_id"`
	Price               int64     `json:"price"`
	QuantityTransacted  int64     `json:"quantity_transacted"`
	TotalQuantity       int64     `json:"total_quantity"`
	State               SlotState `json:"state"`
}

// SameOffer reports whether two slots describe the same offer: position,
// item, price and total quantity all match. Transacted quantity and
// state are allowed to differ between polls.
func (s ExchangeSlot) SameOffer(other ExchangeSlot) bool {
	return s.Position == other.Position &&
		s.ItemID == other.ItemID &&
		s.Price == other.Price &&
		s.TotalQuantity == other.TotalQuantity
}

// Exchange is the full set of marketplace slots observed in one poll.
type Exchange struct {
	Slots []ExchangeSlot `json:"slots"`
}
