package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

var now = time.Date(2026, 10, 16, 20, 15, 0, 0, time.UTC)

func newAnalyzer() *Analyzer {
	return New(period.New(time.Monday, time.UTC), func() time.Time { return now })
}

func daily(target int, entries map[string]int) models.Habit {
	h := models.Habit{ID: "h", Title: "t", Cadence: models.CadenceDaily, TargetCount: target, Logs: models.Logs{}}
	for key, v := range entries {
		h.Logs[key] = models.NewLogEntry(v, target, models.At(now))
	}
	return h
}

// completedRun marks n consecutive days ending at end as completed.
func completedRun(a *Analyzer, end time.Time, n int) map[string]int {
	out := make(map[string]int, n)
	for i := 0; i < n; i++ {
		out[a.Keyer.Key(a.Keyer.AddDays(end, -i), models.CadenceDaily)] = 1
	}
	return out
}

func TestCurrentStreak(t *testing.T) {
	a := newAnalyzer()
	yesterday := a.Keyer.AddDays(now, -1)

	tests := []struct {
		name    string
		entries map[string]int
		want    int
	}{
		{name: "no logs", entries: nil, want: 0},
		{name: "only today", entries: map[string]int{"2026-10-16": 1}, want: 1},
		{name: "today and yesterday", entries: map[string]int{"2026-10-16": 1, "2026-10-15": 1}, want: 2},
		{name: "today missing keeps yesterday's chain", entries: completedRun(a, yesterday, 5), want: 5},
		{name: "today logged zero keeps yesterday's chain", entries: map[string]int{"2026-10-16": 0, "2026-10-15": 1, "2026-10-14": 1}, want: 2},
		{name: "today and yesterday missing", entries: map[string]int{"2026-10-14": 1, "2026-10-13": 1}, want: 0},
		{name: "gap caps the chain", entries: map[string]int{"2026-10-16": 1, "2026-10-15": 1, "2026-10-13": 1, "2026-10-12": 1}, want: 2},
		{name: "thirty day run", entries: completedRun(a, now, 30), want: 30},
		{name: "future entries ignored", entries: map[string]int{"2026-10-17": 1, "2026-10-16": 1}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.CurrentStreak(daily(1, tt.entries)))
		})
	}
}

func TestCurrentStreak_PartialProgressIsNotCompletion(t *testing.T) {
	a := newAnalyzer()
	h := daily(10, map[string]int{"2026-10-16": 4, "2026-10-15": 10})
	assert.Equal(t, 1, a.CurrentStreak(h))
}

func TestCurrentStreak_NonDailyIsZero(t *testing.T) {
	a := newAnalyzer()
	for _, c := range []models.Cadence{models.CadenceWeekly, models.CadenceMonthly} {
		h := models.Habit{Cadence: c, TargetCount: 1, Logs: models.Logs{
			"2026-10-12": {Value: 1, Completed: true},
			"2026-10":    {Value: 1, Completed: true},
		}}
		assert.Zero(t, a.CurrentStreak(h), c)
	}
}

func TestCurrentStreak_LookbackCeiling(t *testing.T) {
	a := newAnalyzer()
	h := daily(1, completedRun(a, now, constants.MaxStreakLookback+200))
	assert.Equal(t, constants.MaxStreakLookback, a.CurrentStreak(h))
}

func TestCurrentStreak_RespectsLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("time zone not available: %v", err)
	}
	// 20:15 UTC on the 16th is the 17th in Tokyo, so the 16th is yesterday.
	a := New(period.New(time.Monday, tokyo), func() time.Time { return now })
	h := daily(1, map[string]int{"2026-10-16": 1, "2026-10-15": 1})
	assert.Equal(t, 2, a.CurrentStreak(h))
	assert.False(t, a.IsCompletedForDate(h, now))
}

func TestScenarios(t *testing.T) {
	a := newAnalyzer()

	t.Run("binary habit logged today", func(t *testing.T) {
		h := daily(1, map[string]int{"2026-10-16": 1})
		assert.True(t, a.IsCompletedForDate(h, now))
		assert.Equal(t, 1, a.CurrentStreak(h))
	})

	t.Run("two day chain", func(t *testing.T) {
		h := daily(1, map[string]int{"2026-10-16": 1, "2026-10-15": 1})
		assert.Equal(t, 2, a.CurrentStreak(h))
	})

	t.Run("overachievement", func(t *testing.T) {
		h := daily(10, map[string]int{"2026-10-16": 12})
		assert.True(t, a.IsCompletedForDate(h, now))
		assert.Equal(t, 12, a.LogValueForDate(h, now))
	})
}

func TestTotalCompletions(t *testing.T) {
	a := newAnalyzer()
	h := models.Habit{Cadence: models.CadenceDaily, TargetCount: 2, Logs: models.Logs{
		"2026-01-01": {Value: 2, Completed: true},
		"2026-01-02": {Value: 1, Completed: false},
		"2026-03-09": {Value: 5, Completed: true},
		"2025-12-31": {Value: 2, Completed: true},
	}}
	assert.Equal(t, 3, a.TotalCompletions(h))
	assert.Zero(t, a.TotalCompletions(models.Habit{}))
}

func TestLogValueForDate_UsesCadence(t *testing.T) {
	a := newAnalyzer()
	weekly := models.Habit{Cadence: models.CadenceWeekly, TargetCount: 3, Logs: models.Logs{
		"2026-10-12": {Value: 2},
	}}
	assert.Equal(t, 2, a.LogValueForDate(weekly, now))
	assert.Equal(t, 2, a.LogValueForDate(weekly, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)))
	assert.Zero(t, a.LogValueForDate(weekly, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))
	assert.False(t, a.IsCompletedForDate(weekly, now))

	monthly := models.Habit{Cadence: models.CadenceMonthly, TargetCount: 1, Logs: models.Logs{
		"2026-10": {Value: 1, Completed: true},
	}}
	assert.True(t, a.IsCompletedForDate(monthly, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)))
}

func TestHistory(t *testing.T) {
	a := newAnalyzer()
	h := daily(2, map[string]int{"2026-10-16": 3, "2026-10-13": 1})

	days := a.History(h, 7)
	require.Len(t, days, 7)
	assert.Equal(t, "2026-10-10", days[0].Key)
	assert.Equal(t, "2026-10-16", days[6].Key)

	values := make([]int, len(days))
	for i, d := range days {
		values[i] = d.Value
	}
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 3}, values)
	assert.True(t, days[6].Completed)
	assert.False(t, days[3].Completed)

	assert.Len(t, a.History(h, 30), 30)
	assert.Nil(t, a.History(h, 0))
}

func TestSummarize(t *testing.T) {
	a := newAnalyzer()
	h := daily(10, map[string]int{"2026-10-16": 12, "2026-10-15": 10, "2026-10-10": 3})

	s := a.Summarize(h)
	assert.Equal(t, Summary{
		Streak:       2,
		Total:        2,
		Value:        12,
		Completed:    true,
		Progress:     1,
		Overachieved: true,
		Next:         7,
	}, s)

	partial := a.Summarize(daily(4, map[string]int{"2026-10-16": 1}))
	assert.InDelta(t, 0.25, partial.Progress, 1e-9)
	assert.False(t, partial.Overachieved)
}

func TestMilestones(t *testing.T) {
	assert.True(t, Milestone(7))
	assert.True(t, Milestone(365))
	assert.False(t, Milestone(8))

	next, ok := NextMilestone(0)
	assert.True(t, ok)
	assert.Equal(t, 7, next)

	next, ok = NextMilestone(30)
	assert.True(t, ok)
	assert.Equal(t, 50, next)

	_, ok = NextMilestone(365)
	assert.False(t, ok)
}
