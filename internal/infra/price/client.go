package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tdp_go/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second

	// Items without a published marketplace limit are treated as
	// effectively unlimited.
	UnlimitedBuyLimit = math.MaxInt32
)

// Client talks to the public price API: latest low/high quotes,
// windowed averages and the static item mapping.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *slog.Logger

	mu      sync.Mutex
	itemMap map[int]domain.ItemMetadata
}

// NewClient creates a price API client. The API requires a descriptive
// user agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type latestPayload struct {
	Data map[string]struct {
		High     int64 `json:"high"`
		HighTime int64 `json:"highTime"`
		Low      int64 `json:"low"`
		LowTime  int64 `json:"lowTime"`
	} `json:"data"`
}

type avgPayload struct {
	Data map[string]struct {
		AvgHighPrice    int64 `json:"avgHighPrice"`
		HighPriceVolume int64 `json:"highPriceVolume"`
		AvgLowPrice     int64 `json:"avgLowPrice"`
		LowPriceVolume  int64 `json:"lowPriceVolume"`
	} `json:"data"`
}

type mappingEntry struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Limit   *int64 `json:"limit"`
	Members bool   `json:"members"`
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("price get "+endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price %s: unexpected status %d: %s", endpoint, resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}

// LatestPrices returns the most recent low/high quote per item.
func (c *Client) LatestPrices(ctx context.Context) (map[int]domain.LatestPrice, error) {
	var payload latestPayload
	if err := c.get(ctx, "/latest", &payload); err != nil {
		return nil, err
	}

	prices := make(map[int]domain.LatestPrice, len(payload.Data))
	for rawID, quote := range payload.Data {
		itemID, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, fmt.Errorf("unexpected item id %q in latest prices: %w", rawID, err)
		}
		prices[itemID] = domain.LatestPrice{
			Low:      quote.Low,
			High:     quote.High,
			LowTime:  time.Unix(quote.LowTime, 0),
			HighTime: time.Unix(quote.HighTime, 0),
		}
	}
	return prices, nil
}

// AvgPrices returns volume-weighted quotes over the requested window.
func (c *Client) AvgPrices(ctx context.Context, window domain.PriceWindow) (map[int]domain.AvgPrice, error) {
	var endpoint string
	switch window {
	case domain.PriceWindow5m:
		endpoint = "/5m"
	case domain.PriceWindow1h:
		endpoint = "/1h"
	default:
		return nil, fmt.Errorf("unsupported price window %q", window)
	}

	var payload avgPayload
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	prices := make(map[int]domain.AvgPrice, len(payload.Data))
	for rawID, quote := range payload.Data {
		itemID, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, fmt.Errorf("unexpected item id %q in avg prices: %w", rawID, err)
		}
		prices[itemID] = domain.AvgPrice{
			Low:        quote.AvgLowPrice,
			High:       quote.AvgHighPrice,
			LowVolume:  quote.LowPriceVolume,
			HighVolume: quote.HighPriceVolume,
			Window:     window,
		}
	}
	return prices, nil
}

// ItemMap returns the static item mapping, fetched once and cached for
// the client's lifetime.
func (c *Client) ItemMap(ctx context.Context) (map[int]domain.ItemMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.itemMap != nil {
		return c.itemMap, nil
	}

	var entries []mappingEntry
	if err := c.get(ctx, "/mapping", &entries); err != nil {
		return nil, err
	}

	items := make(map[int]domain.ItemMetadata, len(entries))
	for _, entry := range entries {
		limit := int64(UnlimitedBuyLimit)
		if entry.Limit != nil {
			limit = *entry.Limit
		}
		items[entry.ID] = domain.ItemMetadata{
			ID:      entry.ID,
			Name:    entry.Name,
			Limit:   limit,
			Members: entry.Members,
		}
	}

	c.itemMap = items
	return items, nil
}
