package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

// ConflictType represents the type of data problem found in stored habits
type ConflictType string

const (
	ConflictInvalidPeriodKey ConflictType = "invalid_period_key"
	ConflictStaleCompletion  ConflictType = "stale_completion"
	ConflictNegativeValue    ConflictType = "negative_value"
	ConflictDuplicateTitle   ConflictType = "duplicate_title"
	ConflictTooManyHabits    ConflictType = "too_many_habits"
)

// Conflict represents one detected problem
type Conflict struct {
	Type        ConflictType
	Description string
	HabitID     string
	PeriodKey   string // empty when the problem is not tied to one period
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// Count returns the number of conflicts of the given type.
func (vr *ValidationResult) Count(t ConflictType) int {
	n := 0
	for _, c := range vr.Conflicts {
		if c.Type == t {
			n++
		}
	}
	return n
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No problems detected."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d problem(s):\n", len(vr.Conflicts))
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	return b.String()
}

// Validator checks stored habits for data that readers would misinterpret
type Validator struct {
	keyer period.Keyer
}

// New creates a Validator that checks period keys with keyer.
func New(keyer period.Keyer) *Validator {
	return &Validator{keyer: keyer}
}

// ValidateHabits inspects active habits and their logs. Keys that do not
// match the habit's cadence are orphans no reader will ever address; stale
// completion flags come from target edits made before recomputation.
func (v *Validator) ValidateHabits(habits []models.Habit) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	active := 0
	titles := make(map[string][]string)
	for _, h := range habits {
		if h.Archived {
			continue
		}
		active++
		norm := strings.ToLower(strings.TrimSpace(h.Title))
		if norm != "" {
			titles[norm] = append(titles[norm], h.ID)
		}

		for _, key := range h.Logs.Keys() {
			e := h.Logs[key]
			if !v.keyer.ValidKey(key, h.Cadence) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictInvalidPeriodKey,
					Description: fmt.Sprintf("%q has a log at %q which is not a %s period key", h.Title, key, h.Cadence),
					HabitID:     h.ID,
					PeriodKey:   key,
				})
			}
			if e.Value < 0 {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictNegativeValue,
					Description: fmt.Sprintf("%q has a negative value %d at %s", h.Title, e.Value, key),
					HabitID:     h.ID,
					PeriodKey:   key,
				})
			}
			if e.Completed != (e.Value >= h.TargetCount) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictStaleCompletion,
					Description: fmt.Sprintf("%q at %s: completed=%v disagrees with %d/%d", h.Title, key, e.Completed, e.Value, h.TargetCount),
					HabitID:     h.ID,
					PeriodKey:   key,
				})
			}
		}
	}

	names := make([]string, 0, len(titles))
	for name := range titles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ids := titles[name]; len(ids) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateTitle,
				Description: fmt.Sprintf("Duplicate habit title %q (IDs: %v)", name, ids),
				HabitID:     ids[0],
			})
		}
	}

	if active > constants.MaxHabits {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictTooManyHabits,
			Description: fmt.Sprintf("%d active habits exceed the limit of %d", active, constants.MaxHabits),
		})
	}

	return result
}
