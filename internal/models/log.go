package models

import (
	"maps"
	"slices"
)

// LogEntry is the progress recorded for one habit in one period
type LogEntry struct {
	Value     int       `json:"value"`
	Completed bool      `json:"completed"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// NewLogEntry builds an entry for a write, clamping negative values to zero
// and deriving completion from the target in effect.
func NewLogEntry(value, targetCount int, at Timestamp) LogEntry {
	if value < 0 {
		value = 0
	}
	return LogEntry{
		Value:     value,
		Completed: value >= targetCount,
		UpdatedAt: at,
	}
}

// Logs maps a period key to the entry for that period
type Logs map[string]LogEntry

// Get returns the entry for key and whether it exists.
func (l Logs) Get(key string) (LogEntry, bool) {
	e, ok := l[key]
	return e, ok
}

// Value returns the logged value for key, or 0.
func (l Logs) Value(key string) int {
	return l[key].Value
}

// Completed returns the completion flag for key, or false.
func (l Logs) Completed(key string) bool {
	return l[key].Completed
}

// Keys returns the period keys in ascending order.
func (l Logs) Keys() []string {
	return slices.Sorted(maps.Keys(l))
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (l Logs) Clone() Logs {
	out := make(Logs, len(l))
	maps.Copy(out, l)
	return out
}

// Recompute returns a copy whose completed flags reflect targetCount.
// UpdatedAt is preserved; values are never changed.
func (l Logs) Recompute(targetCount int) Logs {
	out := make(Logs, len(l))
	for k, e := range l {
		e.Completed = e.Value >= targetCount
		out[k] = e
	}
	return out
}
