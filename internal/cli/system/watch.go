package system

import (
	"fmt"
	"sync"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/reminder"
	"github.com/julianstephens/tally/internal/watchlock"
)

// WatchCmd prints the habit list whenever it changes, from this or any
// other tally process, and reminds about open daily habits in the evening.
type WatchCmd struct {
	NoReminder bool `help:"Disable the evening reminder."`
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	lock, err := watchlock.Acquire(ctx.Config.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release watch lock", "error", err)
		}
	}()

	repo, err := ctx.Repository()
	if err != nil {
		return err
	}

	w := &watcher{ctx: ctx}
	unsubscribe, err := repo.Subscribe(ctx.Ctx, w.update)
	if err != nil {
		return err
	}
	defer unsubscribe()

	if !c.NoReminder {
		sched := reminder.NewScheduler(ctx.Keyer.Location)
		id, err := sched.ScheduleDaily(ctx.Config.Reminder.Time, w.remind)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		w.printf("%s\n", cli.MutedStyle.Render("next reminder "+sched.Next(id).Format("Mon 15:04")))
	}

	<-ctx.Ctx.Done()
	return nil
}

type watcher struct {
	ctx *cli.Context

	mu     sync.Mutex
	habits []models.Habit
}

func (w *watcher) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.ctx.Out, format, args...)
}

func (w *watcher) update(habits []models.Habit) {
	w.mu.Lock()
	w.habits = habits
	fmt.Fprintf(w.ctx.Out, "%s\n", cli.TitleStyle.Render(fmt.Sprintf("[%s] %d habit(s)", w.ctx.Now().Format("15:04:05"), len(habits))))
	for _, h := range habits {
		fmt.Fprintln(w.ctx.Out, cli.HabitLine(h, w.ctx.Analyzer.Summarize(h)))
	}
	w.mu.Unlock()

	if path := w.ctx.Config.Metrics.Textfile; path != "" {
		if err := w.ctx.Metrics.WriteTextfile(path); err != nil {
			logger.Warn("failed to write metrics textfile", "path", path, "error", err)
		}
	}
}

func (w *watcher) remind() {
	w.mu.Lock()
	habits := w.habits
	w.mu.Unlock()

	msg := reminder.Message(reminder.Evening(habits, w.ctx.Analyzer, w.ctx.Now()))
	if msg == "" {
		return
	}
	logger.Info("evening reminder", "message", msg)
	w.printf("%s\n", cli.WarningStyle.Render("⏰ "+msg))
}
