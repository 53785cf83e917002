// Package analytics derives streaks and totals from a habit's log map. Every
// function is pure and recomputes from scratch on each call.
package analytics

import (
	"slices"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

// Analyzer evaluates habits against a calendar and a clock.
type Analyzer struct {
	Keyer period.Keyer
	Now   func() time.Time
}

// New returns an Analyzer. A nil now means time.Now.
func New(keyer period.Keyer, now func() time.Time) *Analyzer {
	return &Analyzer{Keyer: keyer, Now: now}
}

func (a *Analyzer) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// CurrentStreak counts consecutive completed days ending today, or ending
// yesterday when today is not done yet. Only daily habits have streaks.
func (a *Analyzer) CurrentStreak(h models.Habit) int {
	if h.Cadence != models.CadenceDaily {
		return 0
	}

	day := a.Keyer.Day(a.now())
	if !h.Logs.Completed(a.Keyer.Key(day, models.CadenceDaily)) {
		day = a.Keyer.AddDays(day, -1)
	}

	streak := 0
	for streak < constants.MaxStreakLookback {
		if !h.Logs.Completed(a.Keyer.Key(day, models.CadenceDaily)) {
			break
		}
		streak++
		day = a.Keyer.AddDays(day, -1)
	}
	return streak
}

// TotalCompletions counts the completed periods of h.
func (a *Analyzer) TotalCompletions(h models.Habit) int {
	total := 0
	for _, e := range h.Logs {
		if e.Completed {
			total++
		}
	}
	return total
}

// LogValueForDate returns the value logged for the period containing date.
func (a *Analyzer) LogValueForDate(h models.Habit, date time.Time) int {
	return h.Logs.Value(a.Keyer.Key(date, h.Cadence))
}

// IsCompletedForDate reports whether the period containing date is done.
func (a *Analyzer) IsCompletedForDate(h models.Habit, date time.Time) bool {
	return h.Logs.Completed(a.Keyer.Key(date, h.Cadence))
}

// Day is one point of a habit's history.
type Day struct {
	Date      time.Time
	Key       string
	Value     int
	Completed bool
}

// History returns the last days calendar days ending today, oldest first.
// Days without a log entry are reported with a zero value.
func (a *Analyzer) History(h models.Habit, days int) []Day {
	if days <= 0 {
		return nil
	}
	today := a.Keyer.Day(a.now())
	out := make([]Day, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := a.Keyer.AddDays(today, -i)
		key := a.Keyer.Key(date, h.Cadence)
		e, _ := h.Logs.Get(key)
		out = append(out, Day{Date: date, Key: key, Value: e.Value, Completed: e.Completed})
	}
	return out
}

// Summary is the at-a-glance state of a habit for the current period.
type Summary struct {
	Streak       int
	Total        int
	Value        int
	Completed    bool
	Progress     float64
	Overachieved bool
	// Next is the next streak milestone, or 0 once every milestone is passed.
	Next int
}

// Summarize computes the Summary of h as of now.
func (a *Analyzer) Summarize(h models.Habit) Summary {
	now := a.now()
	s := Summary{
		Streak:    a.CurrentStreak(h),
		Total:     a.TotalCompletions(h),
		Value:     a.LogValueForDate(h, now),
		Completed: a.IsCompletedForDate(h, now),
	}
	if h.TargetCount > 0 {
		s.Progress = min(float64(s.Value)/float64(h.TargetCount), 1)
	}
	s.Overachieved = s.Value > h.TargetCount
	s.Next, _ = NextMilestone(s.Streak)
	return s
}

// Milestone reports whether streak is exactly a celebrated length.
func Milestone(streak int) bool {
	return slices.Contains(constants.StreakMilestones, streak)
}

// NextMilestone returns the smallest milestone above streak.
func NextMilestone(streak int) (int, bool) {
	for _, m := range constants.StreakMilestones {
		if m > streak {
			return m, true
		}
	}
	return 0, false
}
