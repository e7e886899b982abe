package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"jobscrape/internal/model"
	"jobscrape/internal/store"
)

// CreateRun implements store.ScrapeRunStore.
func (s *Store) CreateRun(ctx context.Context, run model.ScrapeRun) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal run errors: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scrape_runs (
			id, started_at, finished_at, status, accounts_used, groups_processed,
			messages_fetched, jobs_extracted, duplicates_found, errors_count, errors_json
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		run.ID, run.StartedAt, nullableTime(run.FinishedAt), string(run.Status), run.AccountsUsed, run.GroupsProcessed,
		run.MessagesFetched, run.JobsExtracted, run.DuplicatesFound, run.ErrorsCount, errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: create scrape run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateRun implements store.ScrapeRunStore.
func (s *Store) UpdateRun(ctx context.Context, run model.ScrapeRun) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("store/postgres: marshal run errors: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE scrape_runs SET
			finished_at = $2, status = $3, accounts_used = $4, groups_processed = $5,
			messages_fetched = $6, jobs_extracted = $7, duplicates_found = $8,
			errors_count = $9, errors_json = $10
		WHERE id = $1`,
		run.ID, nullableTime(run.FinishedAt), string(run.Status), run.AccountsUsed, run.GroupsProcessed,
		run.MessagesFetched, run.JobsExtracted, run.DuplicatesFound, run.ErrorsCount, errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: update scrape run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun implements store.ScrapeRunStore.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (model.ScrapeRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, status, accounts_used, groups_processed,
			messages_fetched, jobs_extracted, duplicates_found, errors_count, errors_json
		FROM scrape_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ScrapeRun{}, store.ErrNotFound
	}
	if err != nil {
		return model.ScrapeRun{}, fmt.Errorf("store/postgres: get scrape run %s: %w", id, err)
	}
	return run, nil
}

// ListRunning implements store.ScrapeRunStore.
func (s *Store) ListRunning(ctx context.Context) ([]model.ScrapeRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, status, accounts_used, groups_processed,
			messages_fetched, jobs_extracted, duplicates_found, errors_count, errors_json
		FROM scrape_runs WHERE status = $1`, string(model.ScrapeRunRunning))
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list running scrape runs: %w", err)
	}
	defer rows.Close()

	var out []model.ScrapeRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan scrape run row: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (model.ScrapeRun, error) {
	var run model.ScrapeRun
	var status string
	var errorsJSON []byte
	var finishedAt *time.Time
	if err := row.Scan(
		&run.ID, &run.StartedAt, &finishedAt, &status, &run.AccountsUsed, &run.GroupsProcessed,
		&run.MessagesFetched, &run.JobsExtracted, &run.DuplicatesFound, &run.ErrorsCount, &errorsJSON,
	); err != nil {
		return model.ScrapeRun{}, err
	}
	run.Status = model.ScrapeRunStatus(status)
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
			return model.ScrapeRun{}, fmt.Errorf("unmarshal run errors: %w", err)
		}
	}
	return run, nil
}
