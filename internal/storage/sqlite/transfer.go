package sqlite

import (
	"context"
	"database/sql"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

func (s *Store) ExportData(ctx context.Context) (models.Snapshot, error) {
	var habits []models.Habit
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		habits, err = listHabits(ctx, tx)
		return err
	})
	if err != nil {
		return models.Snapshot{}, wrap("ExportData", err)
	}
	return models.NewSnapshot(habits, models.At(s.now())), nil
}

// ImportData writes every habit in one transaction; SQLite has no batch
// size limit worth splitting for.
func (s *Store) ImportData(ctx context.Context, snap models.Snapshot) error {
	if snap.Habits == nil {
		return errors.Validation("ImportData", "payload has no habits array")
	}
	for _, h := range snap.Habits {
		if err := validation.Habit(h, s.keyer); err != nil {
			return err
		}
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, h := range snap.Habits {
			if h.CreatedAt.IsZero() {
				h.CreatedAt = models.At(s.now())
			}
			if err := upsertHabit(ctx, tx, h); err != nil {
				return err
			}
			if err := replaceLogs(ctx, tx, h.ID, h.Logs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrap("ImportData", err)
	}

	logger.Info("import complete", "habits", len(snap.Habits), "backend", s.Backend())
	s.watch.Nudge()
	return nil
}

func upsertHabit(ctx context.Context, q querier, h models.Habit) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM habit_logs WHERE habit_id = ?", h.ID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM habits WHERE id = ?", h.ID); err != nil {
		return err
	}
	return insertHabit(ctx, q, h)
}

func (s *Store) DeleteAllData(ctx context.Context) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM habit_logs"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM habits")
		return err
	})
	if err != nil {
		return wrap("DeleteAllData", err)
	}

	logger.Warn("all local habit data deleted", "path", s.path)
	s.watch.Nudge()
	return nil
}
