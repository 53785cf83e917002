package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/tally/internal/constants"
)

// Cadence is the recurrence granularity of a habit
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Cadences lists every supported cadence in display order.
var Cadences = []Cadence{CadenceDaily, CadenceWeekly, CadenceMonthly}

// Valid reports whether c is one of the supported cadences.
func (c Cadence) Valid() bool {
	return slices.Contains(Cadences, c)
}

// ParseCadence parses a cadence name, case-insensitively.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid cadence %q (expected daily|weekly|monthly)", s)
	}
	return c, nil
}

// Habit is a tracked goal definition together with its sparse log map
type Habit struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Cadence     Cadence   `json:"type"`
	TargetCount int       `json:"targetCount"`
	Increments  []int     `json:"increments"`
	Frequency   string    `json:"frequency,omitempty"`
	CreatedAt   Timestamp `json:"createdAt"`
	Archived    bool      `json:"archived"`
	Logs        Logs      `json:"logs"`
}

// IsBinary reports whether the habit is a done/not-done habit.
func (h Habit) IsBinary() bool {
	return h.TargetCount <= 1
}

// EffectiveIncrements returns the quick-add buttons, defaulting to a single +1.
func (h Habit) EffectiveIncrements() []int {
	if len(h.Increments) == 0 {
		return []int{constants.DefaultIncrement}
	}
	return slices.Clone(h.Increments)
}

// Clone returns a deep copy so callers can never mutate a repository's state.
func (h Habit) Clone() Habit {
	c := h
	if h.Increments != nil {
		c.Increments = slices.Clone(h.Increments)
	}
	c.Logs = h.Logs.Clone()
	return c
}

// CloneHabits deep-copies a habit list.
func CloneHabits(habits []Habit) []Habit {
	out := make([]Habit, len(habits))
	for i, h := range habits {
		out[i] = h.Clone()
	}
	return out
}

// NewHabit is the input for creating a habit
type NewHabit struct {
	Title       string  `json:"title"`
	Cadence     Cadence `json:"type"`
	TargetCount int     `json:"targetCount"`
	Increments  []int   `json:"increments"`
	Frequency   string  `json:"frequency,omitempty"`
}

// HabitPatch carries a partial habit update; nil fields are left untouched.
// Cadence is fixed at creation and deliberately absent.
type HabitPatch struct {
	Title       *string `json:"title,omitempty"`
	TargetCount *int    `json:"targetCount,omitempty"`
	Increments  *[]int  `json:"increments,omitempty"`
	Frequency   *string `json:"frequency,omitempty"`
	Archived    *bool   `json:"archived,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p HabitPatch) IsEmpty() bool {
	return p.Title == nil && p.TargetCount == nil && p.Increments == nil &&
		p.Frequency == nil && p.Archived == nil
}

// Apply merges the patch into h. Logs are recomputed when the target changes
// so that completed flags stay consistent with the target in effect.
func (p HabitPatch) Apply(h *Habit) {
	if p.Title != nil {
		h.Title = strings.TrimSpace(*p.Title)
	}
	if p.Increments != nil {
		h.Increments = slices.Clone(*p.Increments)
	}
	if p.Frequency != nil {
		h.Frequency = *p.Frequency
	}
	if p.Archived != nil {
		h.Archived = *p.Archived
	}
	if p.TargetCount != nil && *p.TargetCount != h.TargetCount {
		h.TargetCount = *p.TargetCount
		h.Logs = h.Logs.Recompute(h.TargetCount)
	}
}
