package sqlite

import (
	"context"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// ClientState reads the durable per-device state.
func (s *Store) ClientState(ctx context.Context) (models.ClientState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return models.ClientState{}, wrap("ClientState", err)
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.ClientState{}, wrap("ClientState", err)
		}
		data[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.ClientState{}, wrap("ClientState", err)
	}
	return models.MapToClientState(data), nil
}

// SaveClientState replaces the durable per-device state.
func (s *Store) SaveClientState(ctx context.Context, state models.ClientState) error {
	return s.saveSettings(ctx, "SaveClientState", models.ClientStateToMap(state))
}

func (s *Store) saveSettings(ctx context.Context, op string, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)")
	if err != nil {
		return wrap(op, err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return wrap(op, err)
		}
	}
	return wrap(op, tx.Commit())
}

// GuestMode reports whether the device is in guest mode: either the user
// chose it explicitly or local habits exist.
func (s *Store) GuestMode(ctx context.Context) (bool, error) {
	state, err := s.ClientState(ctx)
	if err != nil {
		return false, err
	}
	if state.GuestMode {
		return true, nil
	}
	return s.HasLocalData(ctx)
}

// SetGuestMode records the explicit guest-mode choice.
func (s *Store) SetGuestMode(ctx context.Context, on bool) error {
	state, err := s.ClientState(ctx)
	if err != nil {
		return err
	}
	state.GuestMode = on
	return s.SaveClientState(ctx, state)
}

// Session returns the signed-in scope, or "" when signed out.
func (s *Store) Session(ctx context.Context) (string, error) {
	state, err := s.ClientState(ctx)
	if err != nil {
		return "", err
	}
	return state.SessionScope, nil
}

// SetSession records scope as the signed-in session.
func (s *Store) SetSession(ctx context.Context, scope string) error {
	return s.saveSettings(ctx, "SetSession", map[string]string{constants.SettingSessionScope: scope})
}

// ClearSession forgets the signed-in session.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.SetSession(ctx, "")
}

// HasLocalData reports whether any habit, archived or not, is stored.
func (s *Store) HasLocalData(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM habits").Scan(&n); err != nil {
		return false, wrap("HasLocalData", err)
	}
	return n > 0, nil
}

// ClearLocalData removes every local habit. Client state is kept.
func (s *Store) ClearLocalData(ctx context.Context) error {
	return s.DeleteAllData(ctx)
}
