// Package reminder schedules the evening nudge for daily habits that are
// still open.
package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/tally/internal/analytics"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

// Scheduler runs jobs at wall-clock times in one location.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler returns a stopped Scheduler for loc.
func NewScheduler(loc *time.Location) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{}))),
	}
}

// ScheduleDaily registers job to run every day at the HH:MM time clock.
func (s *Scheduler) ScheduleDaily(clock string, job func()) (cron.EntryID, error) {
	spec, err := dailySpec(clock)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// Next returns the next run time of id.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func dailySpec(clock string) (string, error) {
	t, err := utils.ParseTime(strings.TrimSpace(clock))
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour()), nil
}

// Evening returns the daily habits not completed today.
func Evening(habits []models.Habit, a *analytics.Analyzer, now time.Time) []models.Habit {
	var open []models.Habit
	for _, h := range habits {
		if h.Archived || h.Cadence != models.CadenceDaily {
			continue
		}
		if !a.IsCompletedForDate(h, now) {
			open = append(open, h)
		}
	}
	return open
}

// Message renders the reminder text for open habits, or "" when none are.
func Message(open []models.Habit) string {
	if len(open) == 0 {
		return ""
	}
	titles := make([]string, len(open))
	for i, h := range open {
		titles[i] = h.Title
	}
	if len(open) == 1 {
		return fmt.Sprintf("Still open today: %s", titles[0])
	}
	return fmt.Sprintf("%d habits still open today: %s", len(open), strings.Join(titles, ", "))
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error(msg, append(keysAndValues, "error", err)...)
}
