package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

func TestNewHabit(t *testing.T) {
	long := strings.Repeat("x", 51)
	exact := strings.Repeat("é", 50)

	tests := []struct {
		name    string
		in      models.NewHabit
		wantErr bool
	}{
		{"valid binary", models.NewHabit{Title: "Read", Cadence: models.CadenceDaily, TargetCount: 1}, false},
		{"valid cumulative", models.NewHabit{Title: "Water", Cadence: models.CadenceDaily, TargetCount: 8, Increments: []int{1, 2}}, false},
		{"fifty multibyte runes", models.NewHabit{Title: exact, Cadence: models.CadenceWeekly, TargetCount: 1}, false},
		{"blank title", models.NewHabit{Title: "   ", Cadence: models.CadenceDaily, TargetCount: 1}, true},
		{"title too long", models.NewHabit{Title: long, Cadence: models.CadenceDaily, TargetCount: 1}, true},
		{"unknown cadence", models.NewHabit{Title: "Read", Cadence: "yearly", TargetCount: 1}, true},
		{"zero target", models.NewHabit{Title: "Read", Cadence: models.CadenceDaily, TargetCount: 0}, true},
		{"negative target", models.NewHabit{Title: "Read", Cadence: models.CadenceDaily, TargetCount: -2}, true},
		{"zero increment", models.NewHabit{Title: "Read", Cadence: models.CadenceDaily, TargetCount: 5, Increments: []int{1, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHabit(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewHabit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsValidation(err) {
				t.Errorf("NewHabit() error kind = %v, want validation", errors.KindOf(err))
			}
		})
	}
}

func TestNewHabit_Normalizes(t *testing.T) {
	got, err := NewHabit(models.NewHabit{Title: "  Stretch  ", Cadence: models.CadenceDaily, TargetCount: 1})
	if err != nil {
		t.Fatalf("NewHabit() failed: %v", err)
	}
	if got.Title != "Stretch" {
		t.Errorf("Title = %q, want trimmed", got.Title)
	}
	if got.Frequency != "everyday" {
		t.Errorf("Frequency = %q, want everyday", got.Frequency)
	}
}

func TestPatch(t *testing.T) {
	blank := " "
	ok := "Run"
	zero := 0
	five := 5
	badInc := []int{-1}

	tests := []struct {
		name    string
		patch   models.HabitPatch
		wantErr bool
	}{
		{"empty patch", models.HabitPatch{}, false},
		{"valid title and target", models.HabitPatch{Title: &ok, TargetCount: &five}, false},
		{"blank title", models.HabitPatch{Title: &blank}, true},
		{"zero target", models.HabitPatch{TargetCount: &zero}, true},
		{"negative increment", models.HabitPatch{Increments: &badInc}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Patch(tt.patch)
			if (err != nil) != tt.wantErr {
				t.Errorf("Patch() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHabit_ImportRecord(t *testing.T) {
	k := period.New(time.Monday, time.UTC)
	daily := models.Habit{ID: "h1", Title: "Read", Cadence: models.CadenceDaily, TargetCount: 1}
	weekly := models.Habit{ID: "h2", Title: "Gym", Cadence: models.CadenceWeekly, TargetCount: 3}

	withLogs := func(h models.Habit, logs models.Logs) models.Habit {
		h.Logs = logs
		return h
	}
	withID := func(h models.Habit, id string) models.Habit {
		h.ID = id
		return h
	}

	tests := []struct {
		name    string
		habit   models.Habit
		wantErr bool
	}{
		{"valid daily", withLogs(daily, models.Logs{"2026-10-16": {Value: 1, Completed: true}}), false},
		{"valid weekly", withLogs(weekly, models.Logs{"2026-10-12": {Value: 2}}), false},
		{"missing id", withID(daily, ""), true},
		{"negative value", withLogs(daily, models.Logs{"2026-10-16": {Value: -1}}), true},
		{"garbage key", withLogs(daily, models.Logs{"garbage": {Value: 1}}), true},
		{"weekly key off the week start", withLogs(weekly, models.Logs{"2026-10-14": {Value: 1}}), true},
		{"monthly key on a daily habit", withLogs(daily, models.Logs{"2026-10": {Value: 1}}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Habit(tt.habit, k)
			if tt.wantErr && !errors.IsValidation(err) {
				t.Errorf("Habit() error = %v, want validation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Habit() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateHabits(t *testing.T) {
	v := New(period.New(time.Monday, time.UTC))

	habits := []models.Habit{
		{
			ID: "h1", Title: "Read", Cadence: models.CadenceDaily, TargetCount: 1,
			Logs: models.Logs{
				"2026-10-16": {Value: 1, Completed: true},
				"2026-10":    {Value: 1, Completed: true},
			},
		},
		{
			ID: "h2", Title: "Gym", Cadence: models.CadenceWeekly, TargetCount: 3,
			Logs: models.Logs{
				"2026-10-12": {Value: 2, Completed: true},
				"2026-10-14": {Value: 3, Completed: true},
			},
		},
		{ID: "h3", Title: "read ", Cadence: models.CadenceDaily, TargetCount: 1},
		{ID: "h4", Title: "Old", Cadence: models.CadenceDaily, TargetCount: 1, Archived: true,
			Logs: models.Logs{"bogus": {Value: -5}}},
	}

	result := v.ValidateHabits(habits)

	if got := result.Count(ConflictInvalidPeriodKey); got != 2 {
		t.Errorf("invalid period keys = %d, want 2", got)
	}
	if got := result.Count(ConflictStaleCompletion); got != 1 {
		t.Errorf("stale completions = %d, want 1", got)
	}
	if got := result.Count(ConflictDuplicateTitle); got != 1 {
		t.Errorf("duplicate titles = %d, want 1", got)
	}
	if got := result.Count(ConflictNegativeValue); got != 0 {
		t.Errorf("archived habits should be skipped, got %d negative values", got)
	}
	if !strings.Contains(result.FormatReport(), "problem") {
		t.Errorf("FormatReport() = %q", result.FormatReport())
	}
}

func TestValidateHabits_Clean(t *testing.T) {
	v := New(period.New(time.Monday, time.UTC))
	result := v.ValidateHabits([]models.Habit{
		{ID: "h1", Title: "Read", Cadence: models.CadenceMonthly, TargetCount: 2,
			Logs: models.Logs{"2026-10": {Value: 2, Completed: true}}},
	})
	if result.HasConflicts() {
		t.Errorf("unexpected conflicts: %s", result.FormatReport())
	}
	if result.FormatReport() != "No problems detected." {
		t.Errorf("FormatReport() = %q", result.FormatReport())
	}
}
