package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

func (s *Store) ExportData(ctx context.Context) (models.Snapshot, error) {
	var habits []models.Habit
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := s.inTx(ctx, opts, func(tx *sql.Tx) error {
		var err error
		habits, err = s.listHabits(ctx, tx)
		return err
	})
	if err != nil {
		return models.Snapshot{}, classify("ExportData", err)
	}
	return models.NewSnapshot(habits, models.At(s.now())), nil
}

// ImportData writes the snapshot in batches, each in its own transaction. A
// failed batch does not stop the ones after it; the returned error reports
// how many habits were committed and joins every batch failure.
func (s *Store) ImportData(ctx context.Context, snap models.Snapshot) error {
	if snap.Habits == nil {
		return errors.Validation("ImportData", "payload has no habits array")
	}
	for _, h := range snap.Habits {
		if err := validation.Habit(h, s.keyer); err != nil {
			return err
		}
	}

	committed, failures := importBatches(snap.Habits, constants.ImportBatchSize, func(batch []models.Habit) error {
		return s.inTx(ctx, nil, func(tx *sql.Tx) error {
			for _, h := range batch {
				if h.CreatedAt.IsZero() {
					h.CreatedAt = models.At(s.now())
				}
				if err := s.upsertHabit(ctx, tx, h); err != nil {
					return fmt.Errorf("habit %s: %w", h.ID, err)
				}
			}
			return nil
		})
	})

	logger.Info("import complete", "habits", committed, "failed_batches", len(failures), "backend", s.Backend())
	if len(failures) > 0 {
		err := fmt.Errorf("imported %d of %d habits: %w", committed, len(snap.Habits), stderrors.Join(failures...))
		return classify("ImportData", err)
	}
	return nil
}

// importBatches hands habits to commit in slices of at most size. A failed
// batch is recorded and the next one is still attempted.
func importBatches(habits []models.Habit, size int, commit func(batch []models.Habit) error) (int, []error) {
	var (
		committed int
		failures  []error
	)
	for start := 0; start < len(habits); start += size {
		end := min(start+size, len(habits))
		batch := habits[start:end]
		if err := commit(batch); err != nil {
			logger.Warn("import batch failed", "from", start, "to", end, "error", err)
			failures = append(failures, fmt.Errorf("batch %d-%d: %w", start, end, err))
			continue
		}
		committed += len(batch)
	}
	return committed, failures
}

func (s *Store) upsertHabit(ctx context.Context, q querier, h models.Habit) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM habits WHERE scope_id = $1 AND id = $2", s.scope, h.ID); err != nil {
		return err
	}
	if _, err := s.insertHabit(ctx, q, h); err != nil {
		return err
	}
	return s.replaceLogs(ctx, q, h.ID, h.Logs)
}

func (s *Store) DeleteAllData(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM habits WHERE scope_id = $1", s.scope); err != nil {
		return classify("DeleteAllData", err)
	}
	logger.Warn("all remote habit data deleted", "scope", s.scope)
	return nil
}
