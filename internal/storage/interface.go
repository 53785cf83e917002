// Package storage defines the habit repository contract shared by the local
// (SQLite) and remote (PostgreSQL) backends, and the broker both use to fan
// out live updates to subscribers.
package storage

import (
	"context"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

// Backend names the implementation behind a Repository
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// Listener receives the full list of active habits. The slice and every map
// in it belong to the listener.
type Listener func(habits []models.Habit)

// Unsubscribe deregisters a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Repository is the habit store used by every caller above the storage layer.
// Implementations return *errors.Error values classified by kind.
type Repository interface {
	Backend() Backend

	// CreateHabit assigns an id and creation time and returns the id.
	CreateHabit(ctx context.Context, in models.NewHabit) (string, error)
	// AdoptHabit stores h under a fresh id, keeping its creation time,
	// archived flag and logs.
	AdoptHabit(ctx context.Context, h models.Habit) (string, error)
	// GetHabit returns one active habit.
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	// ListHabits returns active habits in creation order.
	ListHabits(ctx context.Context) ([]models.Habit, error)
	// Subscribe delivers the current list before returning and again after
	// every change until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, fn Listener) (Unsubscribe, error)
	// UpdateHabit merges p into the habit. Missing ids are a no-op.
	UpdateHabit(ctx context.Context, id string, p models.HabitPatch) error
	// DeleteHabit archives the habit. Missing ids are a no-op.
	DeleteHabit(ctx context.Context, id string) error
	// UpdateLog overwrites the entry for the period ref addresses.
	UpdateLog(ctx context.Context, habitID string, ref period.Ref, value, targetCount int, cadence models.Cadence) error
	// ExportData snapshots every active habit with its logs.
	ExportData(ctx context.Context) (models.Snapshot, error)
	// ImportData writes every habit in s under its own id, replacing any
	// habit with the same id.
	ImportData(ctx context.Context, s models.Snapshot) error
	// DeleteAllData permanently removes every habit in scope.
	DeleteAllData(ctx context.Context) error

	Close() error
}
