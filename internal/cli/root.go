// Package cli holds the state shared by every tally command.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/analytics"
	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/metrics"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/router"
	"github.com/julianstephens/tally/internal/storage"
)

// ConfirmFunc asks a yes/no question.
type ConfirmFunc func(title, description string) (bool, error)

type Context struct {
	Ctx      context.Context
	Config   *config.Config
	Router   *router.Router
	Metrics  *metrics.Metrics
	Keyer    period.Keyer
	Analyzer *analytics.Analyzer
	Now      func() time.Time

	In      io.Reader
	Out     io.Writer
	Confirm ConfirmFunc

	repo    storage.Repository
	session router.Session
}

// New wires a Context from a loaded config. remoteDSN may be empty.
func New(ctx context.Context, cfg *config.Config, remoteDSN string) *Context {
	keyer := period.New(cfg.WeekStartDay(), cfg.Location())
	m := metrics.New()
	return &Context{
		Ctx:    ctx,
		Config: cfg,
		Router: router.New(router.Options{
			DBPath:    cfg.DBPath(),
			RemoteDSN: remoteDSN,
			Keyer:     keyer,
			Metrics:   m,
		}),
		Metrics:  m,
		Keyer:    keyer,
		Analyzer: analytics.New(keyer, nil),
		Now:      time.Now,
		In:       os.Stdin,
		Out:      os.Stdout,
		Confirm:  PromptConfirm,
	}
}

// PromptConfirm asks on the terminal with a huh confirm field.
func PromptConfirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeBase())
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// Printf writes to the command output.
func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

// Println writes a line to the command output.
func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

// Session returns the persisted session.
func (c *Context) Session() (router.Session, error) {
	return c.Router.Current(c.Ctx)
}

// Repository returns the habit repository for the current session. It is
// opened once per command.
func (c *Context) Repository() (storage.Repository, error) {
	if c.repo != nil {
		return c.repo, nil
	}
	session, err := c.Session()
	if err != nil {
		return nil, err
	}
	repo, err := c.Router.Open(c.Ctx, session)
	if err != nil {
		return nil, err
	}
	c.repo, c.session = repo, session
	return repo, nil
}

// FindHabit resolves ref as a habit id, then as a case-insensitive title.
func (c *Context) FindHabit(repo storage.Repository, ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	habits, err := repo.ListHabits(c.Ctx)
	if err != nil {
		return models.Habit{}, err
	}
	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
	}
	var match []models.Habit
	for _, h := range habits {
		if strings.EqualFold(h.Title, ref) {
			match = append(match, h)
		}
	}
	switch len(match) {
	case 0:
		return models.Habit{}, errors.NotFound("FindHabit", fmt.Sprintf("habit %q", ref))
	case 1:
		return match[0], nil
	default:
		return models.Habit{}, errors.Validation("FindHabit", "%d habits are titled %q; use the id instead", len(match), ref)
	}
}

// Date parses a YYYY-MM-DD flag in the configured time zone, defaulting to now.
func (c *Context) Date(s string) (time.Time, error) {
	if s == "" || s == "today" {
		return c.Now(), nil
	}
	t, err := time.ParseInLocation(constants.DateFormat, s, c.Keyer.Location)
	if err != nil {
		return time.Time{}, errors.Validation("Date", "invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// Backups returns the backup manager for the local database.
func (c *Context) Backups() *backup.Manager {
	return backup.NewManager(c.Config.DBPath(), backup.Options{Max: c.Config.Backup.Max})
}

// PerformAutomaticBackup snapshots the local database before a destructive
// command. Failures are logged and never interrupt the command.
func (c *Context) PerformAutomaticBackup() {
	if c.session.SignedIn() {
		return
	}
	if _, err := os.Stat(c.Config.DBPath()); err != nil {
		return
	}
	if _, err := c.Backups().Create(c.Ctx); err != nil {
		logger.Warn("automatic backup failed", "error", err)
	}
}

// Close releases the repository and the local store.
func (c *Context) Close() error {
	if c.repo != nil {
		if err := c.repo.Close(); err != nil {
			logger.Warn("failed to close repository", "error", err)
		}
		c.repo = nil
	}
	if c.Config != nil && c.Config.Metrics.Textfile != "" {
		if err := c.Metrics.WriteTextfile(c.Config.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", c.Config.Metrics.Textfile, "error", err)
		}
	}
	return c.Router.Close()
}
