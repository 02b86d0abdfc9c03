package gds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tdp_go/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client talks to the game data server: the live-session HTTP surface
// exposed by the game client plugin. All reads are synchronous
// snapshots of what the game currently shows.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a game data server client.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type slotPayload struct {
	Position           int    `json:"position"`
	ItemID             int    `json:"itemId"`
	Price              int64  `json:"price"`
	QuantityTransacted int64  `json:"quantityTransacted"`
	TotalQuantity      int64  `json:"totalQuantity"`
	State              string `json:"state"`
}

type exchangePayload struct {
	Slots []slotPayload `json:"slots"`
}

type itemPayload struct {
	ID       int   `json:"id"`
	Quantity int64 `json:"quantity"`
}

type inventoryPayload struct {
	Items []itemPayload `json:"items"`
}

type sessionPayload struct {
	ID         string  `json:"id"`
	PlayerName string  `json:"playerName"`
	StartTime  float64 `json:"startTime"`
	IsF2p      bool    `json:"isF2p"`
}

type healthPayload struct {
	Health string `json:"health"`
}

// get fetches an endpoint with bounded retries and exponential backoff,
// decoding the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doGet(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		c.log.Warn("gds fetch attempt failed",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", i+1),
			slog.Any("error", err),
		)
	}
	return lastErr
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("gds get "+endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gds %s: unexpected status %d: %s", endpoint, resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}

// Health verifies the game data server is reachable and reporting
// healthy.
func (c *Client) Health(ctx context.Context) error {
	var payload healthPayload
	if err := c.get(ctx, "/health", &payload); err != nil {
		return err
	}
	if payload.Health != "healthy" {
		return fmt.Errorf("game data server health status: %s", payload.Health)
	}
	return nil
}

// Exchange returns the current marketplace slots.
func (c *Client) Exchange(ctx context.Context) (domain.Exchange, error) {
	var payload exchangePayload
	if err := c.get(ctx, "/exchange", &payload); err != nil {
		return domain.Exchange{}, err
	}

	slots := make([]domain.ExchangeSlot, 0, len(payload.Slots))
	for _, slot := range payload.Slots {
		slots = append(slots, domain.ExchangeSlot{
			Position:           slot.Position,
			ItemID:             slot.ItemID,
			Price:              slot.Price,
			QuantityTransacted: slot.QuantityTransacted,
			TotalQuantity:      slot.TotalQuantity,
			State:              domain.ParseSlotState(slot.State),
		})
	}
	return domain.Exchange{Slots: slots}, nil
}

// Inventory returns the player's current holdings.
func (c *Client) Inventory(ctx context.Context) (domain.Inventory, error) {
	var payload inventoryPayload
	if err := c.get(ctx, "/inventory", &payload); err != nil {
		return domain.Inventory{}, err
	}

	items := make([]domain.Item, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, domain.Item{ID: item.ID, Quantity: item.Quantity})
	}
	return domain.Inventory{Items: items}, nil
}

// SessionMetadata returns the game client's description of the live
// play session.
func (c *Client) SessionMetadata(ctx context.Context) (domain.SessionMetadata, error) {
	var payload sessionPayload
	if err := c.get(ctx, "/session", &payload); err != nil {
		return domain.SessionMetadata{}, err
	}

	sec := int64(payload.StartTime)
	nsec := int64((payload.StartTime - float64(sec)) * float64(time.Second))
	return domain.SessionMetadata{
		ID:         payload.ID,
		PlayerName: payload.PlayerName,
		StartTime:  time.Unix(sec, nsec),
		IsF2p:      payload.IsF2p,
	}, nil
}
