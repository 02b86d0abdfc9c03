package domain

import "time"

// LatestPrice is the most recent instant low/high quote for an item.
type LatestPrice struct {
	Low      int64     `json:"low"`
	High     int64     `json:"high"`
	LowTime  time.Time `json:"low_time"`
	HighTime time.Time `json:"high_time"`
}

// PriceWindow selects an averaging period for windowed quotes.
type PriceWindow string

const (
	PriceWindow5m PriceWindow = "5m"
	PriceWindow1h PriceWindow = "1h"
)

// AvgPrice is a volume-weighted quote over a PriceWindow.
type AvgPrice struct {
	Low        int64       `json:"low"`
	High       int64       `json:"high"`
	LowVolume  int64       `json:"low_volume"`
	HighVolume int64       `json:"high_volume"`
	Window     PriceWindow `json:"window"`
}

// ItemMetadata is the static description of a tradeable item, including
// its marketplace buy limit.
type ItemMetadata struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Limit   int64  `json:"limit"`
	Members bool   `json:"members"`
}
