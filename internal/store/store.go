// Package store defines the relational persistence contract for companies,
// jobs, scrape runs, and admin-configured preferences. Concrete backends
// live in subpackages (postgres for production, memory for tests).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/model"
)

// ErrNotFound is returned by Get-style methods when no row matches.
var ErrNotFound = errors.New("store: not found")

// CompanyStore resolves and creates canonical Company rows.
type CompanyStore interface {
	// FindOrCreate resolves canonicalName to an existing Company, creating
	// one if it doesn't already exist. Resolution is case-insensitive.
	FindOrCreate(ctx context.Context, canonicalName string) (model.Company, error)
	GetCompany(ctx context.Context, id int) (model.Company, error)
}

// JobStore persists canonical Job rows.
type JobStore interface {
	CreateJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (model.Job, error)
	UpdateJob(ctx context.Context, job model.Job) error

	// FindByContentHash returns jobs matching hash whose CreatedAt falls
	// within [since, now], used by the Deduper to find collapse candidates.
	FindByContentHash(ctx context.Context, hash string, since time.Time) ([]model.Job, error)

	// ListBySourceMessageIDs returns jobs sourced from any of ids, created
	// at or after since. The Channel Scorer resolves a channel's message
	// IDs from the raw message store and passes them in here, since jobs
	// reference messages, not channels, directly.
	ListBySourceMessageIDs(ctx context.Context, ids []uuid.UUID, since time.Time) ([]model.Job, error)

	// ListActiveDuplicateHashes returns content hashes carried by more than
	// one active job, which the dedup path should have prevented. The
	// verify CLI command reports any it finds.
	ListActiveDuplicateHashes(ctx context.Context) ([]string, error)
}

// ScrapeRunStore persists ScrapeRun rows.
type ScrapeRunStore interface {
	CreateRun(ctx context.Context, run model.ScrapeRun) error
	UpdateRun(ctx context.Context, run model.ScrapeRun) error
	GetRun(ctx context.Context, id uuid.UUID) (model.ScrapeRun, error)

	// ListRunning returns runs still in the Running state, used by the
	// batcher's watchdog sweep to find stale runs.
	ListRunning(ctx context.Context) ([]model.ScrapeRun, error)
}

// PreferencesStore persists the single admin-configured Preferences record.
type PreferencesStore interface {
	GetPreferences(ctx context.Context) (model.Preferences, error)
	PutPreferences(ctx context.Context, prefs model.Preferences) error
}

// Store aggregates every relational persistence concern. Most callers take
// the narrower interface they need; Store exists for wiring a single
// backend at startup.
type Store interface {
	CompanyStore
	JobStore
	ScrapeRunStore
	PreferencesStore
}
