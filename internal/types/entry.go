package types

import (
	"encoding/json"
	"fmt"
)

// Entry is a free-form record attached to a card: a note, a check-in or a
// payment method. Entries carry an optional "id" field.
type Entry map[string]any

// ID returns the entry's id field, or "" when absent or not a string
func (e Entry) ID() string {
	if e == nil {
		return ""
	}
	switch id := e["id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%v", id)
	case int, int64:
		return fmt.Sprintf("%d", id)
	}
	return ""
}

// Key identifies the entry for deduplication. It is the id when present,
// otherwise the canonical JSON form. encoding/json sorts map keys, so two
// entries with the same content always produce the same key.
func (e Entry) Key() string {
	if id := e.ID(); id != "" {
		return "id:" + id
	}
	data, err := json.Marshal(map[string]any(e))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(e))
	}
	return "json:" + string(data)
}
