package storage

import (
	"encoding/json"
	"fmt"
)

// Persisted entities are wrapped in a versioned envelope so the store
// format can evolve deliberately instead of implicitly tracking struct
// shape. Bump the version constant when a breaking field change ships
// and add a migration branch in decode.
const (
	tradeSessionVersion = 1
	buyLimitVersion     = 1
	exchangeVersion     = 1
	pnlVersion          = 1
	validityVersion     = 1
)

type envelope struct {
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

func encode(version int, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	raw, err := json.Marshal(envelope{V: version, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return raw, nil
}

func decode(version int, raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.V != version {
		return fmt.Errorf("unsupported stored version %d, want %d", env.V, version)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
