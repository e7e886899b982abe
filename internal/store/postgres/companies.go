package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"jobscrape/internal/model"
	"jobscrape/internal/store"
)

// FindOrCreate implements store.CompanyStore.
func (s *Store) FindOrCreate(ctx context.Context, canonicalName string) (model.Company, error) {
	normalized := normalizeCompanyName(canonicalName)

	var c model.Company
	row := s.pool.QueryRow(ctx,
		`SELECT id, canonical_name, verified FROM companies WHERE normalized_name = $1`, normalized)
	err := row.Scan(&c.ID, &c.CanonicalName, &c.Verified)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Company{}, fmt.Errorf("store/postgres: find company %q: %w", canonicalName, err)
	}

	row = s.pool.QueryRow(ctx,
		`INSERT INTO companies (canonical_name, normalized_name) VALUES ($1, $2)
		 ON CONFLICT (normalized_name) DO UPDATE SET normalized_name = EXCLUDED.normalized_name
		 RETURNING id, canonical_name, verified`,
		canonicalName, normalized)
	if err := row.Scan(&c.ID, &c.CanonicalName, &c.Verified); err != nil {
		return model.Company{}, fmt.Errorf("store/postgres: create company %q: %w", canonicalName, err)
	}
	return c, nil
}

// GetCompany implements store.CompanyStore.
func (s *Store) GetCompany(ctx context.Context, id int) (model.Company, error) {
	var c model.Company
	row := s.pool.QueryRow(ctx, `SELECT id, canonical_name, verified FROM companies WHERE id = $1`, id)
	if err := row.Scan(&c.ID, &c.CanonicalName, &c.Verified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Company{}, store.ErrNotFound
		}
		return model.Company{}, fmt.Errorf("store/postgres: get company %d: %w", id, err)
	}
	return c, nil
}
