// Package sync moves guest data into an account the moment a guest signs in.
package sync

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/metrics"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

// LocalStore is the guest-side store being drained.
type LocalStore interface {
	ListHabits(ctx context.Context) ([]models.Habit, error)
	ClearLocalData(ctx context.Context) error
	SetGuestMode(ctx context.Context, on bool) error
}

// ConfirmFunc decides whether local habits should be added to an account
// that already has habits of its own.
type ConfirmFunc func(ctx context.Context, localCount, remoteCount int) (bool, error)

// Outcome describes what a merge did.
type Outcome int

const (
	NothingToSync Outcome = iota
	Uploaded
	Merged
	Discarded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NothingToSync:
		return "nothing_to_sync"
	case Uploaded:
		return "uploaded"
	case Merged:
		return "merged"
	case Discarded:
		return "discarded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result reports a merge. Err is informational: a failed merge never
// prevents the sign-in from completing.
type Result struct {
	Outcome Outcome
	Copied  int
	Err     error
}

// Merger copies guest habits into a remote scope. A nil Confirm declines
// every conflicting merge.
type Merger struct {
	Confirm ConfirmFunc
	Metrics *metrics.Metrics
}

// Merge runs the one-time migration of local habits into remote. Local data
// is cleared after every completed attempt and kept when copying failed.
func (m *Merger) Merge(ctx context.Context, local LocalStore, remote storage.Repository) Result {
	res := m.merge(ctx, local, remote)
	if m.Metrics != nil {
		m.Metrics.SyncOutcome(res.Outcome.String())
	}
	if res.Outcome == Failed {
		logger.Error("guest data sync failed; local data kept", "copied", res.Copied, "error", res.Err)
	} else {
		logger.Info("guest data sync finished", "outcome", res.Outcome, "copied", res.Copied)
	}
	return res
}

func (m *Merger) merge(ctx context.Context, local LocalStore, remote storage.Repository) Result {
	habits, err := local.ListHabits(ctx)
	if err != nil {
		return Result{Outcome: Failed, Err: fmt.Errorf("failed to read local habits: %w", err)}
	}
	if len(habits) == 0 {
		return finish(ctx, local, Result{Outcome: NothingToSync})
	}

	existing, err := remote.ListHabits(ctx)
	if err != nil {
		return Result{Outcome: Failed, Err: fmt.Errorf("failed to read remote habits: %w", err)}
	}

	outcome := Uploaded
	if len(existing) > 0 {
		ok, err := m.confirm(ctx, len(habits), len(existing))
		if err != nil {
			return Result{Outcome: Failed, Err: fmt.Errorf("merge confirmation failed: %w", err)}
		}
		if !ok {
			return finish(ctx, local, Result{Outcome: Discarded})
		}
		outcome = Merged
	}

	var (
		copied   int
		failures []error
	)
	for _, h := range habits {
		if _, err := remote.AdoptHabit(ctx, h); err != nil {
			failures = append(failures, fmt.Errorf("habit %q: %w", h.Title, err))
			continue
		}
		copied++
	}
	if len(failures) > 0 {
		return Result{
			Outcome: Failed,
			Copied:  copied,
			Err:     fmt.Errorf("copied %d of %d habits: %w", copied, len(habits), stderrors.Join(failures...)),
		}
	}
	return finish(ctx, local, Result{Outcome: outcome, Copied: copied})
}

func (m *Merger) confirm(ctx context.Context, localCount, remoteCount int) (bool, error) {
	if m.Confirm == nil {
		return false, nil
	}
	return m.Confirm(ctx, localCount, remoteCount)
}

// finish clears guest data after a completed attempt. A failure here is
// reported on the result without changing the outcome.
func finish(ctx context.Context, local LocalStore, res Result) Result {
	if err := local.ClearLocalData(ctx); err != nil {
		res.Err = fmt.Errorf("failed to clear local data: %w", err)
		return res
	}
	if err := local.SetGuestMode(ctx, false); err != nil {
		res.Err = fmt.Errorf("failed to leave guest mode: %w", err)
	}
	return res
}
