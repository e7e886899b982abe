package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"jobscrape/internal/model"
)

// GetPreferences implements store.PreferencesStore. It returns the
// zero-value Preferences (no filtering applied) if none has been
// configured yet.
func (s *Store) GetPreferences(ctx context.Context) (model.Preferences, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM preferences WHERE id = true`)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Preferences{}, nil
		}
		return model.Preferences{}, fmt.Errorf("store/postgres: get preferences: %w", err)
	}
	var prefs model.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("store/postgres: unmarshal preferences: %w", err)
	}
	return prefs, nil
}

// PutPreferences implements store.PreferencesStore.
func (s *Store) PutPreferences(ctx context.Context, prefs model.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal preferences: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO preferences (id, data) VALUES (true, $1)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, data)
	if err != nil {
		return fmt.Errorf("store/postgres: put preferences: %w", err)
	}
	return nil
}
