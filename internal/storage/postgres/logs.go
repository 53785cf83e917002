package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
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

	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM habits WHERE scope_id = $1 AND id = $2 AND NOT archived", s.scope, habitID).Scan(&exists)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("UpdateLog", "habit "+habitID)
		}
		if err != nil {
			return err
		}
		return s.upsertLog(ctx, tx, habitID, key, entry)
	})
	return classify("UpdateLog", err)
}

func (s *Store) upsertLog(ctx context.Context, q querier, habitID, key string, e models.LogEntry) error {
	updatedAt := e.UpdatedAt.Time
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO habit_logs (scope_id, habit_id, period_key, value, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope_id, habit_id, period_key) DO UPDATE SET
			value = EXCLUDED.value,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at`,
		s.scope, habitID, key, max(e.Value, 0), e.Completed, updatedAt.UTC())
	return err
}

func (s *Store) replaceLogs(ctx context.Context, q querier, habitID string, logs models.Logs) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM habit_logs WHERE scope_id = $1 AND habit_id = $2", s.scope, habitID); err != nil {
		return err
	}
	for _, key := range logs.Keys() {
		if err := s.upsertLog(ctx, q, habitID, key, logs[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadHabitLogs(ctx context.Context, q querier, habitID string) (models.Logs, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT habit_id, period_key, value, completed, updated_at
		FROM habit_logs WHERE scope_id = $1 AND habit_id = $2`, s.scope, habitID)
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

func (s *Store) loadActiveLogs(ctx context.Context, q querier) (map[string]models.Logs, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT l.habit_id, l.period_key, l.value, l.completed, l.updated_at
		FROM habit_logs l
		JOIN habits h ON h.scope_id = l.scope_id AND h.id = l.habit_id
		WHERE l.scope_id = $1 AND NOT h.archived`, s.scope)
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
			habitID, key string
			e            models.LogEntry
			updatedAt    time.Time
		)
		if err := rows.Scan(&habitID, &key, &e.Value, &e.Completed, &updatedAt); err != nil {
			return nil, err
		}
		e.UpdatedAt = models.At(updatedAt)

		if out[habitID] == nil {
			out[habitID] = models.Logs{}
		}
		out[habitID][key] = e
	}
	return out, rows.Err()
}
