// Package postgres implements store.Store on top of PostgreSQL via pgx.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobscrape/internal/model"
	"jobscrape/internal/store"
)

// Pool is the minimal subset of *pgxpool.Pool the store uses, so tests can
// substitute a fake without standing up a real database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Store is a store.Store implementation backed by Postgres.
type Store struct {
	pool Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgxpool.Pool against dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}

func normalizeCompanyName(name string) string {
	return model.NormalizeCompanyName(name)
}

// nullableTime returns nil for a zero time.Time so pgx writes SQL NULL
// instead of the zero-value timestamp.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Schema is the DDL jobscrape expects in the target database. Callers
// execute this once against a fresh database; it is intentionally
// idempotent. Nothing in cmd/jobscrape executes it.
const Schema = `
CREATE TABLE IF NOT EXISTS companies (
	id SERIAL PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	verified BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS accounts (
	id SERIAL PRIMARY KEY,
	api_id TEXT NOT NULL,
	api_hash TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT true,
	is_banned BOOLEAN NOT NULL DEFAULT false,
	health TEXT NOT NULL DEFAULT 'healthy',
	consecutive_errors INT NOT NULL DEFAULT 0,
	last_used_at TIMESTAMPTZ,
	last_join_at TIMESTAMPTZ,
	daily_joins INT NOT NULL DEFAULT 0,
	daily_joins_date DATE
);

CREATE TABLE IF NOT EXISTS channels (
	id SERIAL PRIMARY KEY,
	handle TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	is_member BOOLEAN NOT NULL DEFAULT false,
	assigned_account_id INT REFERENCES accounts(id),
	last_seen_message_id BIGINT,
	last_scraped_at TIMESTAMPTZ,
	messages_scraped BIGINT NOT NULL DEFAULT 0,
	job_messages_found BIGINT NOT NULL DEFAULT 0,
	quality_jobs_found BIGINT NOT NULL DEFAULT 0,
	health_score DOUBLE PRECISION NOT NULL DEFAULT 50,
	status TEXT NOT NULL DEFAULT 'active',
	deactivation_reason TEXT NOT NULL DEFAULT '',
	consecutive_low_health_windows INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS jobs (
	id UUID PRIMARY KEY,
	company_id INT NOT NULL REFERENCES companies(id),
	source_message_id UUID NOT NULL,
	title TEXT NOT NULL,
	location_raw TEXT NOT NULL DEFAULT '',
	location_cities TEXT[] NOT NULL DEFAULT '{}',
	is_remote BOOLEAN NOT NULL DEFAULT false,
	is_hybrid BOOLEAN NOT NULL DEFAULT false,
	is_onsite_only BOOLEAN NOT NULL DEFAULT false,
	geographic_scope TEXT NOT NULL DEFAULT 'unspecified',
	experience_raw TEXT NOT NULL DEFAULT '',
	experience_min_years INT,
	experience_max_years INT,
	is_fresher BOOLEAN NOT NULL DEFAULT false,
	salary_monthly_inr INT,
	skills TEXT[] NOT NULL DEFAULT '{}',
	category TEXT NOT NULL DEFAULT '',
	apply_url TEXT NOT NULL DEFAULT '',
	apply_emails TEXT[] NOT NULL DEFAULT '{}',
	apply_phones TEXT[] NOT NULL DEFAULT '{}',
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	view_count BIGINT NOT NULL DEFAULT 0,
	save_count BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_content_hash ON jobs (content_hash, created_at);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	accounts_used INT NOT NULL DEFAULT 0,
	groups_processed INT NOT NULL DEFAULT 0,
	messages_fetched INT NOT NULL DEFAULT 0,
	jobs_extracted INT NOT NULL DEFAULT 0,
	duplicates_found INT NOT NULL DEFAULT 0,
	errors_count INT NOT NULL DEFAULT 0,
	errors_json JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS preferences (
	id BOOLEAN PRIMARY KEY DEFAULT true CHECK (id),
	data JSONB NOT NULL
);
`
