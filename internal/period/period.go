// Package period maps calendar dates to the canonical keys that address a
// habit's log map. Every reader and writer of logs goes through a Keyer so
// that the same date and cadence always produce the same key.
package period

import (
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// Keyer computes period keys in a fixed location with a fixed week start
type Keyer struct {
	WeekStart time.Weekday
	Location  *time.Location
}

// Default returns a Keyer with Monday week starts in the local time zone.
func Default() Keyer {
	return Keyer{WeekStart: time.Monday, Location: time.Local}
}

// New returns a Keyer for the given week start and location. A nil
// location means time.Local.
func New(weekStart time.Weekday, loc *time.Location) Keyer {
	if loc == nil {
		loc = time.Local
	}
	return Keyer{WeekStart: weekStart, Location: loc}
}

func (k Keyer) location() *time.Location {
	if k.Location == nil {
		return time.Local
	}
	return k.Location
}

// Day truncates t to midnight of its calendar day in the Keyer's location.
func (k Keyer) Day(t time.Time) time.Time {
	t = t.In(k.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, k.location())
}

// AddDays moves n calendar days from t's day, independent of DST shifts.
func (k Keyer) AddDays(t time.Time, n int) time.Time {
	d := k.Day(t)
	return time.Date(d.Year(), d.Month(), d.Day()+n, 0, 0, 0, 0, k.location())
}

// WeekStartOf returns the first day of the week containing t.
func (k Keyer) WeekStartOf(t time.Time) time.Time {
	d := k.Day(t)
	offset := (int(d.Weekday()) - int(k.WeekStart) + 7) % 7
	return k.AddDays(d, -offset)
}

// Key returns the period key of date for the cadence. Unknown cadences are
// keyed daily.
func (k Keyer) Key(date time.Time, cadence models.Cadence) string {
	switch cadence {
	case models.CadenceWeekly:
		return k.WeekStartOf(date).Format(constants.DateFormat)
	case models.CadenceMonthly:
		return k.Day(date).Format(constants.MonthFormat)
	default:
		return k.Day(date).Format(constants.DateFormat)
	}
}

// Today returns the daily key of now.
func (k Keyer) Today(now time.Time) string {
	return k.Key(now, models.CadenceDaily)
}

// ParseKey parses a period key back into the start of its period in the
// Keyer's location. Month keys parse to the first of the month.
func (k Keyer) ParseKey(key string) (time.Time, error) {
	if t, err := time.ParseInLocation(constants.DateFormat, key, k.location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(constants.MonthFormat, key, k.location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid period key %q (expected YYYY-MM-DD or YYYY-MM)", key)
}

// ValidKey reports whether key is a well-formed key for cadence. Weekly keys
// must fall on the configured week start.
func (k Keyer) ValidKey(key string, cadence models.Cadence) bool {
	t, err := k.ParseKey(key)
	if err != nil {
		return false
	}
	return k.Key(t, cadence) == key
}
