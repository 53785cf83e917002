package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gookit/validate"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

var habitMessages = map[string]string{
	"title.required":       "title is required",
	"cadence.required":     "cadence is required",
	"cadence.in":           "cadence must be one of daily, weekly, monthly",
	"targetCount.required": "targetCount must be at least 1",
	"targetCount.min":      "targetCount must be at least 1",
}

// NewHabit normalizes and checks the input for creating a habit. The returned
// value has a trimmed title and the default frequency filled in.
func NewHabit(in models.NewHabit) (models.NewHabit, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Frequency == "" {
		in.Frequency = constants.DefaultFrequency
	}
	if err := checkHabit(in.Title, in.Cadence, in.TargetCount, in.Increments); err != nil {
		return in, errors.Validation("CreateHabit", "%s", err)
	}
	return in, nil
}

// Patch checks every field present in p against the creation rules.
func Patch(p models.HabitPatch) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return errors.Validation("UpdateHabit", "title is required")
		}
		if err := checkTitleLength(title); err != nil {
			return errors.Validation("UpdateHabit", "%s", err)
		}
	}
	if p.TargetCount != nil && *p.TargetCount < 1 {
		return errors.Validation("UpdateHabit", "targetCount must be at least 1")
	}
	if p.Increments != nil {
		if err := checkIncrements(*p.Increments); err != nil {
			return errors.Validation("UpdateHabit", "%s", err)
		}
	}
	return nil
}

// Habit checks a full habit record, as read from an import payload. Every
// log key must be one keyer would produce for the habit's cadence.
func Habit(h models.Habit, keyer period.Keyer) error {
	if strings.TrimSpace(h.ID) == "" {
		return errors.Validation("ImportData", "habit without id")
	}
	if err := checkHabit(strings.TrimSpace(h.Title), h.Cadence, h.TargetCount, h.Increments); err != nil {
		return errors.Validation("ImportData", "habit %s: %s", h.ID, err)
	}
	for _, key := range h.Logs.Keys() {
		if !keyer.ValidKey(key, h.Cadence) {
			return errors.Validation("ImportData", "habit %s: %q is not a %s period key", h.ID, key, h.Cadence)
		}
		if h.Logs[key].Value < 0 {
			return errors.Validation("ImportData", "habit %s: negative value at %s", h.ID, key)
		}
	}
	return nil
}

func checkHabit(title string, cadence models.Cadence, targetCount int, increments []int) error {
	v := validate.Map(map[string]any{
		"title":       title,
		"cadence":     string(cadence),
		"targetCount": targetCount,
	})
	v.StringRule("title", "required")
	v.StringRule("cadence", "required|in:daily,weekly,monthly")
	v.StringRule("targetCount", "required|int|min:1")
	v.AddMessages(habitMessages)
	if !v.Validate() {
		return fmt.Errorf("%s", v.Errors.One())
	}
	if err := checkTitleLength(title); err != nil {
		return err
	}
	return checkIncrements(increments)
}

func checkTitleLength(title string) error {
	if n := utf8.RuneCountInString(title); n > constants.MaxTitleLength {
		return fmt.Errorf("title is %d characters, the limit is %d", n, constants.MaxTitleLength)
	}
	return nil
}

func checkIncrements(increments []int) error {
	for i, inc := range increments {
		if inc <= 0 {
			return fmt.Errorf("increment %d must be positive, got %d", i+1, inc)
		}
	}
	return nil
}
