package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/period"
)

func (s *Store) UpdateLog(ctx context.Context, habitID string, ref period.Ref, value, targetCount int, cadence models.Cadence) error {
	if ref.IsKey() && !s.keyer.ValidKey(ref.String(), cadence) {
		return errors.Validation("UpdateLog", "%q is not a %s period key", ref.String(), cadence)
	}
	key := s.keyer.Resolve(ref, cadence)
	entry := models.NewLogEntry(value, targetCount, models.At(s.now()))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM habits WHERE id = ? AND archived = 0", habitID).Scan(&exists)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("UpdateLog", "habit "+habitID)
		}
		if err != nil {
			return err
		}
		return upsertLog(ctx, tx, habitID, key, entry)
	})
	if err != nil {
		return wrap("UpdateLog", err)
	}
	s.watch.Nudge()
	return nil
}

func upsertLog(ctx context.Context, q querier, habitID, key string, e models.LogEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO habit_logs (habit_id, period_key, value, completed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (habit_id, period_key) DO UPDATE SET
			value = excluded.value,
			completed = excluded.completed,
			updated_at = excluded.updated_at`,
		habitID, key, e.Value, boolToInt(e.Completed), formatTimestamp(e.UpdatedAt))
	return err
}

// replaceLogs makes logs the complete log map of habitID.
func replaceLogs(ctx context.Context, q querier, habitID string, logs models.Logs) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM habit_logs WHERE habit_id = ?", habitID); err != nil {
		return err
	}
	for _, key := range logs.Keys() {
		e := logs[key]
		if e.Value < 0 {
			e.Value = 0
		}
		if err := upsertLog(ctx, q, habitID, key, e); err != nil {
			return err
		}
	}
	return nil
}

func loadHabitLogs(ctx context.Context, q querier, habitID string) (models.Logs, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT habit_id, period_key, value, completed, updated_at
		FROM habit_logs WHERE habit_id = ?`, habitID)
	if err != nil {
		return nil, err
	}
	all, err := scanLogs(rows)
	if err != nil {
		return nil, err
	}
	if logs := all[habitID]; logs != nil {
		return logs, nil
	}
	return models.Logs{}, nil
}

func loadActiveLogs(ctx context.Context, q querier) (map[string]models.Logs, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT l.habit_id, l.period_key, l.value, l.completed, l.updated_at
		FROM habit_logs l JOIN habits h ON h.id = l.habit_id
		WHERE h.archived = 0`)
	if err != nil {
		return nil, err
	}
	return scanLogs(rows)
}

func scanLogs(rows *sql.Rows) (map[string]models.Logs, error) {
	defer rows.Close()

	out := make(map[string]models.Logs)
	for rows.Next() {
		var (
			habitID, key, updatedAt string
			e                       models.LogEntry
			completed               int
		)
		if err := rows.Scan(&habitID, &key, &e.Value, &completed, &updatedAt); err != nil {
			return nil, err
		}
		e.Completed = completed != 0
		if updatedAt != "" {
			t, err := time.Parse(time.RFC3339Nano, updatedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse updated_at for %s/%s: %w", habitID, key, err)
			}
			e.UpdatedAt = models.At(t)
		}

		if out[habitID] == nil {
			out[habitID] = models.Logs{}
		}
		out[habitID][key] = e
	}
	return out, rows.Err()
}

// formatTimestamp stores the zero time as an empty string.
func formatTimestamp(t models.Timestamp) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
