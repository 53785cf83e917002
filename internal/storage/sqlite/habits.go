package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

const habitColumns = "id, title, cadence, target_count, increments, frequency, created_at, archived"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func newLocalID() string {
	return constants.LocalIDPrefix + uuid.NewString()
}

func (s *Store) CreateHabit(ctx context.Context, in models.NewHabit) (string, error) {
	in, err := validation.NewHabit(in)
	if err != nil {
		return "", err
	}
	if err := s.checkLimit(ctx, "CreateHabit"); err != nil {
		return "", err
	}

	h := models.Habit{
		ID:          newLocalID(),
		Title:       in.Title,
		Cadence:     in.Cadence,
		TargetCount: in.TargetCount,
		Increments:  in.Increments,
		Frequency:   in.Frequency,
		CreatedAt:   models.At(s.now()),
		Logs:        models.Logs{},
	}
	if err := insertHabit(ctx, s.db, h); err != nil {
		return "", wrap("CreateHabit", err)
	}

	logger.Info("habit created", "id", h.ID, "backend", s.Backend())
	s.watch.Nudge()
	return h.ID, nil
}

func (s *Store) AdoptHabit(ctx context.Context, h models.Habit) (string, error) {
	if err := validation.Habit(h, s.keyer); err != nil {
		return "", err
	}
	h = h.Clone()
	h.ID = newLocalID()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = models.At(s.now())
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertHabit(ctx, tx, h); err != nil {
			return err
		}
		return replaceLogs(ctx, tx, h.ID, h.Logs)
	})
	if err != nil {
		return "", wrap("AdoptHabit", err)
	}
	s.watch.Nudge()
	return h.ID, nil
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = ? AND archived = 0", id)
	h, err := scanHabit(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, errors.NotFound("GetHabit", "habit "+id)
		}
		return models.Habit{}, wrap("GetHabit", err)
	}

	h.Logs, err = loadHabitLogs(ctx, s.db, id)
	if err != nil {
		return models.Habit{}, wrap("GetHabit", err)
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context) ([]models.Habit, error) {
	habits, err := listHabits(ctx, s.db)
	if err != nil {
		return nil, wrap("ListHabits", err)
	}
	return habits, nil
}

func listHabits(ctx context.Context, q querier) ([]models.Habit, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE archived = 0 ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	logs, err := loadActiveLogs(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range habits {
		habits[i].Logs = logs[habits[i].ID]
		if habits[i].Logs == nil {
			habits[i].Logs = models.Logs{}
		}
	}
	return habits, nil
}

func (s *Store) UpdateHabit(ctx context.Context, id string, p models.HabitPatch) error {
	if err := validation.Patch(p); err != nil {
		return err
	}
	if p.IsEmpty() {
		return nil
	}

	changed := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+habitColumns+" FROM habits WHERE id = ?", id)
		h, err := scanHabit(row)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				logger.Debug("update of missing habit ignored", "id", id)
				return nil
			}
			return err
		}
		oldTarget := h.TargetCount

		if h.Logs, err = loadHabitLogs(ctx, tx, id); err != nil {
			return err
		}
		p.Apply(&h)

		increments, err := encodeIncrements(h.Increments)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE habits SET title = ?, target_count = ?, increments = ?, frequency = ?, archived = ?
			WHERE id = ?`,
			h.Title, h.TargetCount, increments, h.Frequency, boolToInt(h.Archived), id); err != nil {
			return err
		}
		if h.TargetCount != oldTarget {
			if _, err := tx.ExecContext(ctx,
				"UPDATE habit_logs SET completed = (value >= ?) WHERE habit_id = ?",
				h.TargetCount, id); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return wrap("UpdateHabit", err)
	}
	if changed {
		s.watch.Nudge()
	}
	return nil
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE habits SET archived = 1 WHERE id = ? AND archived = 0", id)
	if err != nil {
		return wrap("DeleteHabit", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("habit archived", "id", id, "backend", s.Backend())
		s.watch.Nudge()
	}
	return nil
}

func (s *Store) checkLimit(ctx context.Context, op string) error {
	var active int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM habits WHERE archived = 0").Scan(&active); err != nil {
		return wrap(op, err)
	}
	if active >= constants.MaxHabits {
		return errors.Validation(op, "habit limit reached (%d active habits)", constants.MaxHabits)
	}
	return nil
}

func insertHabit(ctx context.Context, q querier, h models.Habit) error {
	increments, err := encodeIncrements(h.Increments)
	if err != nil {
		return err
	}
	frequency := h.Frequency
	if frequency == "" {
		frequency = constants.DefaultFrequency
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, strings.TrimSpace(h.Title), string(h.Cadence), h.TargetCount, increments,
		frequency, formatTimestamp(h.CreatedAt), boolToInt(h.Archived))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHabit(row scanner) (models.Habit, error) {
	var (
		h          models.Habit
		cadence    string
		increments string
		createdAt  string
		archived   int
	)
	if err := row.Scan(&h.ID, &h.Title, &cadence, &h.TargetCount, &increments, &h.Frequency, &createdAt, &archived); err != nil {
		return models.Habit{}, err
	}
	h.Cadence = models.Cadence(cadence)
	h.Archived = archived != 0

	if increments != "" {
		if err := json.Unmarshal([]byte(increments), &h.Increments); err != nil {
			return models.Habit{}, fmt.Errorf("failed to parse increments for habit %s: %w", h.ID, err)
		}
		if len(h.Increments) == 0 {
			h.Increments = nil
		}
	}
	if createdAt != "" {
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return models.Habit{}, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
		}
		h.CreatedAt = models.At(t)
	}
	return h, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func encodeIncrements(increments []int) (string, error) {
	if increments == nil {
		increments = []int{}
	}
	b, err := json.Marshal(increments)
	return string(b), err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
