package models

import "github.com/julianstephens/tally/internal/constants"

// Snapshot is the export/import document
type Snapshot struct {
	Version    int       `json:"version"`
	ExportedAt Timestamp `json:"exportedAt"`
	Habits     []Habit   `json:"habits"`
}

// NewSnapshot builds an export document for habits taken at the given time.
func NewSnapshot(habits []Habit, at Timestamp) Snapshot {
	if habits == nil {
		habits = []Habit{}
	}
	return Snapshot{
		Version:    constants.ExportVersion,
		ExportedAt: at,
		Habits:     habits,
	}
}
