package sync

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rsned/tower-planner/pkg/planner"
)

// rawEntry is one key/value pair of a JSON object, in document order.
type rawEntry struct {
	Key   string
	Value json.RawMessage
}

// decodeObject reads a JSON object keeping its key order. The catalog order
// and recipe ingredient order both come from key order.
func decodeObject(data []byte) ([]rawEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []rawEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		out = append(out, rawEntry{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

// firstByte returns the first non-whitespace byte of data, or 0.
func firstByte(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// unwrap descends into key when the document is a full game-data export
// rather than a projected table.
func unwrap(entries []rawEntry, key string) ([]rawEntry, error) {
	for _, e := range entries {
		if e.Key == key {
			return decodeObject(e.Value)
		}
	}
	return entries, nil
}

// AmountImport is one ingredient or product in the list form.
type AmountImport struct {
	Item   string  `json:"item,omitempty"`
	ItemID string  `json:"item_id,omitempty"`
	Amount float64 `json:"amount,omitempty"`
	PerMin float64 `json:"perMin,omitempty"`
}

// decodeAmounts accepts either an ordered {item: amount} object or a list of
// AmountImport.
func decodeAmounts(raw json.RawMessage) ([]planner.ItemAmount, error) {
	if isNull(raw) {
		return nil, nil
	}

	if firstByte(raw) == '[' {
		var list []AmountImport
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		out := make([]planner.ItemAmount, 0, len(list))
		for _, a := range list {
			id := a.ItemID
			if id == "" {
				id = a.Item
			}
			if id == "" {
				continue
			}
			amount := a.Amount
			if amount == 0 {
				amount = a.PerMin
			}
			out = append(out, planner.ItemAmount{ItemID: id, Amount: amount})
		}
		return out, nil
	}

	entries, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	out := make([]planner.ItemAmount, 0, len(entries))
	for _, e := range entries {
		var amount float64
		if err := json.Unmarshal(e.Value, &amount); err != nil {
			return nil, fmt.Errorf("amount of %q: %w", e.Key, err)
		}
		out = append(out, planner.ItemAmount{ItemID: e.Key, Amount: amount})
	}
	return out, nil
}
