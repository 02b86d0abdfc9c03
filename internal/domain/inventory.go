package domain

// CoinsItemID is the cash-equivalent item. Its quantity values 1:1 in
// net-worth terms and it never carries a buy limit.
const CoinsItemID = 995

// Item is one inventory stack.
type Item struct {
	ID       int   `json:"id"`
	Quantity int64 `json:"quantity"`
}

// Inventory is the player's current holdings as reported by the game
// client. The same item id may appear in multiple stacks.
type Inventory struct {
	Items []Item `json:"items"`
}

// Quantities aggregates stacks into a per-item total.
func (inv Inventory) Quantities() map[int]int64 {
	totals := make(map[int]int64)
	for _, item := range inv.Items {
		totals[item.ID] += item.Quantity
	}
	return totals
}
