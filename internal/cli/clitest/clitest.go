// Package clitest builds command contexts backed by a temporary data
// directory for command tests.
package clitest

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/analytics"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/metrics"
	"github.com/julianstephens/tally/internal/period"
	"github.com/julianstephens/tally/internal/router"
)

// Now is the fixed clock of every test context: Friday 2026-10-16 18:30 UTC.
var Now = time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC)

// Options adjust a test context.
type Options struct {
	Input     string
	RemoteDSN string
	Confirm   cli.ConfirmFunc
}

// New returns a Context whose output is captured in the returned buffer.
// Prompts answer yes unless Options.Confirm says otherwise.
func New(t *testing.T, opts Options) (*cli.Context, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Path:      filepath.Join(dir, "config.yaml"),
		DataDir:   dir,
		Timezone:  "UTC",
		WeekStart: "monday",
		Sync:      config.SyncConfig{Debounce: 10 * time.Millisecond},
		Reminder:  config.ReminderConfig{Time: "21:00"},
		Backup:    config.BackupConfig{Max: 3},
	}
	now := func() time.Time { return Now }
	keyer := period.New(time.Monday, time.UTC)
	m := metrics.New()

	confirm := opts.Confirm
	if confirm == nil {
		confirm = func(string, string) (bool, error) { return true, nil }
	}

	out := &bytes.Buffer{}
	ctx := &cli.Context{
		Ctx:    context.Background(),
		Config: cfg,
		Router: router.New(router.Options{
			DBPath:    cfg.DBPath(),
			RemoteDSN: opts.RemoteDSN,
			Keyer:     keyer,
			Now:       now,
			Metrics:   m,
		}),
		Metrics:  m,
		Keyer:    keyer,
		Analyzer: analytics.New(keyer, now),
		Now:      now,
		In:       strings.NewReader(opts.Input),
		Out:      out,
		Confirm:  confirm,
	}
	t.Cleanup(func() {
		if err := ctx.Close(); err != nil {
			t.Errorf("failed to close context: %v", err)
		}
	})
	return ctx, out
}
