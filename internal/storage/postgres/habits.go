package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

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

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) CreateHabit(ctx context.Context, in models.NewHabit) (string, error) {
	in, err := validation.NewHabit(in)
	if err != nil {
		return "", err
	}
	if err := s.checkLimit(ctx, "CreateHabit"); err != nil {
		return "", err
	}

	id, err := s.insertHabit(ctx, s.db, models.Habit{
		Title:       in.Title,
		Cadence:     in.Cadence,
		TargetCount: in.TargetCount,
		Increments:  in.Increments,
		Frequency:   in.Frequency,
		CreatedAt:   models.At(s.now()),
	})
	if err != nil {
		return "", classify("CreateHabit", err)
	}

	logger.Info("habit created", "id", id, "backend", s.Backend())
	return id, nil
}

// AdoptHabit stores h under a fresh server-assigned id, keeping its creation
// time and logs.
func (s *Store) AdoptHabit(ctx context.Context, h models.Habit) (string, error) {
	if err := validation.Habit(h, s.keyer); err != nil {
		return "", err
	}
	h = h.Clone()
	h.ID = ""
	if h.CreatedAt.IsZero() {
		h.CreatedAt = models.At(s.now())
	}

	var id string
	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		if id, err = s.insertHabit(ctx, tx, h); err != nil {
			return err
		}
		return s.replaceLogs(ctx, tx, id, h.Logs)
	})
	if err != nil {
		return "", classify("AdoptHabit", err)
	}
	return id, nil
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE scope_id = $1 AND id = $2 AND NOT archived",
		s.scope, id)
	h, err := scanHabit(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, errors.NotFound("GetHabit", "habit "+id)
		}
		return models.Habit{}, classify("GetHabit", err)
	}

	if h.Logs, err = s.loadHabitLogs(ctx, s.db, id); err != nil {
		return models.Habit{}, classify("GetHabit", err)
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context) ([]models.Habit, error) {
	habits, err := s.listHabits(ctx, s.db)
	if err != nil {
		return nil, classify("ListHabits", err)
	}
	return habits, nil
}

func (s *Store) listHabits(ctx context.Context, q querier) ([]models.Habit, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE scope_id = $1 AND NOT archived ORDER BY created_at, id",
		s.scope)
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

	logs, err := s.loadActiveLogs(ctx, q)
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

	err := s.inTx(ctx, nil, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+habitColumns+" FROM habits WHERE scope_id = $1 AND id = $2 FOR UPDATE",
			s.scope, id)
		h, err := scanHabit(row)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				logger.Debug("update of missing habit ignored", "id", id)
				return nil
			}
			return err
		}
		oldTarget := h.TargetCount
		p.Apply(&h)

		increments, err := encodeIncrements(h.Increments)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE habits SET title = $1, target_count = $2, increments = $3::jsonb, frequency = $4, archived = $5
			WHERE scope_id = $6 AND id = $7`,
			h.Title, h.TargetCount, increments, h.Frequency, h.Archived, s.scope, id); err != nil {
			return err
		}
		if h.TargetCount != oldTarget {
			_, err := tx.ExecContext(ctx,
				"UPDATE habit_logs SET completed = (value >= $1) WHERE scope_id = $2 AND habit_id = $3",
				h.TargetCount, s.scope, id)
			return err
		}
		return nil
	})
	return classify("UpdateHabit", err)
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE habits SET archived = TRUE WHERE scope_id = $1 AND id = $2 AND NOT archived", s.scope, id)
	if err != nil {
		return classify("DeleteHabit", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("habit archived", "id", id, "backend", s.Backend())
	}
	return nil
}

func (s *Store) checkLimit(ctx context.Context, op string) error {
	var active int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM habits WHERE scope_id = $1 AND NOT archived", s.scope).Scan(&active)
	if err != nil {
		return classify(op, err)
	}
	if active >= constants.MaxHabits {
		return errors.Validation(op, "habit limit reached (%d active habits)", constants.MaxHabits)
	}
	return nil
}

// insertHabit writes h and returns its id. An empty h.ID lets the server
// generate one.
func (s *Store) insertHabit(ctx context.Context, q querier, h models.Habit) (string, error) {
	increments, err := encodeIncrements(h.Increments)
	if err != nil {
		return "", err
	}
	frequency := h.Frequency
	if frequency == "" {
		frequency = constants.DefaultFrequency
	}

	var id string
	err = q.QueryRowContext(ctx, `
		INSERT INTO habits (scope_id, id, title, cadence, target_count, increments, frequency, created_at, archived)
		VALUES ($1, COALESCE(NULLIF($2, ''), gen_random_uuid()::text), $3, $4, $5, $6::jsonb, $7, $8, $9)
		RETURNING id`,
		s.scope, h.ID, strings.TrimSpace(h.Title), string(h.Cadence), h.TargetCount, increments,
		frequency, h.CreatedAt.UTC(), h.Archived).Scan(&id)
	return id, err
}

func scanHabit(row scanner) (models.Habit, error) {
	var (
		h          models.Habit
		cadence    string
		increments []byte
		createdAt  time.Time
	)
	if err := row.Scan(&h.ID, &h.Title, &cadence, &h.TargetCount, &increments, &h.Frequency, &createdAt, &h.Archived); err != nil {
		return models.Habit{}, err
	}
	h.Cadence = models.Cadence(cadence)
	h.CreatedAt = models.At(createdAt)

	if len(increments) > 0 {
		if err := json.Unmarshal(increments, &h.Increments); err != nil {
			return models.Habit{}, fmt.Errorf("failed to parse increments for habit %s: %w", h.ID, err)
		}
		if len(h.Increments) == 0 {
			h.Increments = nil
		}
	}
	return h, nil
}

func encodeIncrements(increments []int) (string, error) {
	if increments == nil {
		increments = []int{}
	}
	b, err := json.Marshal(increments)
	return string(b), err
}
