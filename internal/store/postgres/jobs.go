package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"jobscrape/internal/model"
	"jobscrape/internal/store"
)

// CreateJob implements store.JobStore.
func (s *Store) CreateJob(ctx context.Context, job model.Job) error {
	var minYears, maxYears any
	if job.Experience.MinYears != nil {
		minYears = *job.Experience.MinYears
	}
	if job.Experience.MaxYears != nil {
		maxYears = *job.Experience.MaxYears
	}
	var salary any
	if job.SalaryMonthlyINR != nil {
		salary = *job.SalaryMonthlyINR
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, company_id, source_message_id, title,
			location_raw, location_cities, is_remote, is_hybrid, is_onsite_only, geographic_scope,
			experience_raw, experience_min_years, experience_max_years, is_fresher,
			salary_monthly_inr, skills, category,
			apply_url, apply_emails, apply_phones,
			quality_score, relevance_score, content_hash, is_active,
			created_at, last_seen_at, view_count, save_count
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $28
		)`,
		job.ID, job.CompanyID, job.SourceMessageID, job.Title,
		job.Location.Raw, job.Location.Cities, job.Location.IsRemote, job.Location.IsHybrid, job.Location.IsOnsiteOnly, string(job.Location.GeographicScope),
		job.Experience.Raw, minYears, maxYears, job.Experience.IsFresher,
		salary, job.Skills, job.Category,
		job.Apply.URL, job.Apply.Emails, job.Apply.Phones,
		job.QualityScore, job.RelevanceScore, job.ContentHash, job.IsActive,
		job.CreatedAt, job.LastSeenAt, job.ViewCount, job.SaveCount,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob implements store.JobStore.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, company_id, source_message_id, title,
			location_raw, location_cities, is_remote, is_hybrid, is_onsite_only, geographic_scope,
			experience_raw, experience_min_years, experience_max_years, is_fresher,
			salary_monthly_inr, skills, category,
			apply_url, apply_emails, apply_phones,
			quality_score, relevance_score, content_hash, is_active,
			created_at, last_seen_at, view_count, save_count
		FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, store.ErrNotFound
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("store/postgres: get job %s: %w", id, err)
	}
	return job, nil
}

// UpdateJob implements store.JobStore.
func (s *Store) UpdateJob(ctx context.Context, job model.Job) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			is_active = $2, quality_score = $3, relevance_score = $4,
			last_seen_at = $5, view_count = $6, save_count = $7
		WHERE id = $1`,
		job.ID, job.IsActive, job.QualityScore, job.RelevanceScore,
		job.LastSeenAt, job.ViewCount, job.SaveCount,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: update job %s: %w", job.ID, err)
	}
	return nil
}

// FindByContentHash implements store.JobStore.
func (s *Store) FindByContentHash(ctx context.Context, hash string, since time.Time) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, source_message_id, title,
			location_raw, location_cities, is_remote, is_hybrid, is_onsite_only, geographic_scope,
			experience_raw, experience_min_years, experience_max_years, is_fresher,
			salary_monthly_inr, skills, category,
			apply_url, apply_emails, apply_phones,
			quality_score, relevance_score, content_hash, is_active,
			created_at, last_seen_at, view_count, save_count
		FROM jobs WHERE content_hash = $1 AND created_at >= $2
		ORDER BY created_at ASC`, hash, since)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: find jobs by hash: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListBySourceMessageIDs implements store.JobStore. Jobs don't store a
// channel reference directly; the Channel Scorer resolves a channel's
// message IDs from the raw message store (a separate document store) and
// passes them in here rather than this query joining across stores.
func (s *Store) ListBySourceMessageIDs(ctx context.Context, ids []uuid.UUID, since time.Time) ([]model.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, source_message_id, title,
			location_raw, location_cities, is_remote, is_hybrid, is_onsite_only, geographic_scope,
			experience_raw, experience_min_years, experience_max_years, is_fresher,
			salary_monthly_inr, skills, category,
			apply_url, apply_emails, apply_phones,
			quality_score, relevance_score, content_hash, is_active,
			created_at, last_seen_at, view_count, save_count
		FROM jobs WHERE source_message_id = ANY($1) AND created_at >= $2`, ids, since)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list jobs by source message ids: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListActiveDuplicateHashes implements store.JobStore.
func (s *Store) ListActiveDuplicateHashes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content_hash FROM jobs
		WHERE is_active
		GROUP BY content_hash
		HAVING COUNT(*) > 1`)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list active duplicate hashes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("store/postgres: scan duplicate hash: %w", err)
		}
		out = append(out, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate duplicate hashes: %w", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (model.Job, error) {
	var j model.Job
	var cities, skills, emails, phones []string
	var minYears, maxYears, salary *int
	var scope string
	if err := row.Scan(
		&j.ID, &j.CompanyID, &j.SourceMessageID, &j.Title,
		&j.Location.Raw, &cities, &j.Location.IsRemote, &j.Location.IsHybrid, &j.Location.IsOnsiteOnly, &scope,
		&j.Experience.Raw, &minYears, &maxYears, &j.Experience.IsFresher,
		&salary, &skills, &j.Category,
		&j.Apply.URL, &emails, &phones,
		&j.QualityScore, &j.RelevanceScore, &j.ContentHash, &j.IsActive,
		&j.CreatedAt, &j.LastSeenAt, &j.ViewCount, &j.SaveCount,
	); err != nil {
		return model.Job{}, err
	}
	j.Location.Cities = cities
	j.Location.GeographicScope = model.GeographicScope(scope)
	j.Experience.MinYears = minYears
	j.Experience.MaxYears = maxYears
	j.SalaryMonthlyINR = salary
	j.Skills = skills
	j.Apply.Emails = emails
	j.Apply.Phones = phones
	return j, nil
}

func scanJobs(rows pgx.Rows) ([]model.Job, error) {
	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan job row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate job rows: %w", err)
	}
	return out, nil
}
