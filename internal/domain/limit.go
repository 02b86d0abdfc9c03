package domain

import (
	"strings"
	"time"
)

// BuyLimit tracks how much of an item was bought inside the current
// rolling window. Bought only grows while ResetTime is unset or still
// in the future; once ResetTime elapses with no purchase observed in a
// cycle, Bought is zeroed and ResetTime cleared.
type BuyLimit struct {
	ItemID    int        `json:"item_id"`
	Bought    int64      `json:"bought"`
	Limit     int64      `json:"limit"`
	ResetTime *time.Time `json:"reset_time,omitempty"`
}

// Remaining returns how much more of the item may be bought before the
// window resets.
func (b BuyLimit) Remaining() int64 {
	if b.Bought >= b.Limit {
		return 0
	}
	return b.Limit - b.Bought
}

// ItemContainer scopes a buy-limit query.
type ItemContainer uint8

const (
	ItemContainerAll ItemContainer = iota
	ItemContainerExchange
	ItemContainerInventory
)

var itemContainerNames = map[ItemContainer]string{
	ItemContainerAll:       "ALL",
	ItemContainerExchange:  "EXCHANGE",
	ItemContainerInventory: "INVENTORY",
}

func (c ItemContainer) String() string {
	if name, ok := itemContainerNames[c]; ok {
		return name
	}
	return "ALL"
}

// ParseItemContainer resolves the wire representation; the boolean is
// false for unknown values.
func ParseItemContainer(raw string) (ItemContainer, bool) {
	upper := strings.ToUpper(raw)
	for container, name := range itemContainerNames {
		if name == upper {
			return container, true
		}
	}
	return ItemContainerAll, false
}
