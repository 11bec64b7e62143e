package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Timestamp holds a point in time decoded from any of the representations
// found in stored documents. The zero value means "unknown" and yields 0
// from ToMillis.
type Timestamp struct {
	Millis int64
}

// NewTimestamp converts a time.Time to a Timestamp
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Millis: t.UnixMilli()}
}

// ToMillis returns epoch milliseconds
func (t Timestamp) ToMillis() int64 {
	return t.Millis
}

// Time returns the timestamp as a UTC time.Time
func (t Timestamp) Time() time.Time {
	if t.Millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.Millis).UTC()
}

// MarshalJSON encodes the timestamp as epoch milliseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(t.Millis, 10)), nil
}

// UnmarshalJSON accepts {seconds|_seconds, nanoseconds|_nanoseconds},
// a number of epoch millis, an RFC3339 string, or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Millis = 0
		return nil
	}

	switch data[0] {
	case '{':
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode timestamp object: %w", err)
		}
		t.Millis = MillisOf(raw)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode timestamp string: %w", err)
		}
		t.Millis = parseISOMillis(s)
		return nil
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s", string(data))
		}
		t.Millis = int64(f)
		return nil
	}
}

type millisConverter interface {
	ToMillis() int64
}

// MillisOf extracts epoch milliseconds from an arbitrary timestamp value.
// Resolution order:
//  1. a value with a ToMillis() method
//  2. a map or struct carrying a seconds field (seconds*1000 + nanoseconds/1e6)
//  3. time.Time or *time.Time
//  4. an ISO-8601 string
//
// Anything else yields 0.
func MillisOf(v any) int64 {
	if v == nil {
		return 0
	}
	if c, ok := v.(millisConverter); ok {
		return c.ToMillis()
	}

	switch x := v.(type) {
	case map[string]any:
		if secs, ok := firstNumber(x, "seconds", "_seconds"); ok {
			nanos, _ := firstNumber(x, "nanoseconds", "_nanoseconds")
			return int64(secs)*1000 + int64(nanos)/1e6
		}
		return 0
	case time.Time:
		if x.IsZero() {
			return 0
		}
		return x.UnixMilli()
	case *time.Time:
		if x == nil || x.IsZero() {
			return 0
		}
		return x.UnixMilli()
	case string:
		return parseISOMillis(x)
	}

	return structSeconds(v)
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		switch n := raw.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int32:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// structSeconds handles structs with exported Seconds/Nanoseconds fields,
// e.g. decoded Firestore-style timestamps.
func structSeconds(v any) int64 {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return 0
	}
	secs := rv.FieldByName("Seconds")
	if !secs.IsValid() || !secs.CanInt() {
		return 0
	}
	ms := secs.Int() * 1000
	if nanos := rv.FieldByName("Nanoseconds"); nanos.IsValid() && nanos.CanInt() {
		ms += nanos.Int() / 1e6
	}
	return ms
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISOMillis(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
