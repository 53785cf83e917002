package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// Timestamp is a point in time that always serializes as RFC 3339 but
// accepts the representations other backends export: RFC 3339 strings,
// {seconds,nanoseconds} objects (with or without leading underscores),
// and epoch milliseconds.
type Timestamp struct {
	time.Time
}

// At wraps t, normalized to UTC with millisecond precision.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return At(time.Now())
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
}

type nativeTimestamp struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	switch data[0] {
	case '"':
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid timestamp string: %w", err)
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*t = At(parsed)
		return nil
	case '{':
		var n nativeTimestamp
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid timestamp object: %w", err)
		}
		switch {
		case n.Seconds != nil:
			*t = At(time.Unix(*n.Seconds, n.Nanoseconds))
		case n.USeconds != nil:
			*t = At(time.Unix(*n.USeconds, n.UNanoseconds))
		default:
			return fmt.Errorf("timestamp object has no seconds field")
		}
		return nil
	default:
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		*t = At(time.UnixMilli(ms))
		return nil
	}
}
