// Package dedupe implements the Deduper: content-hash computation and
// rolling-window duplicate collapse.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobscrape/internal/logging"
	"jobscrape/internal/model"
)

// DefaultWindow is the default rolling dedup window.
const DefaultWindow = 48 * time.Hour

// JobLookup is the narrow slice of store.JobStore the Deduper needs: finding
// Jobs sharing a content hash within the window, and updating one in place.
// Declared locally, matching store.JobStore's signatures, so the Deduper can
// be tested against a fake without depending on the full store.Store
// interface.
type JobLookup interface {
	FindByContentHash(ctx context.Context, hash string, since time.Time) ([]model.Job, error)
	UpdateJob(ctx context.Context, job model.Job) error
}

// Config holds the Deduper's dependencies.
type Config struct {
	Jobs   JobLookup
	Window time.Duration // 0 defaults to DefaultWindow
	Logger *slog.Logger
	Now    func() time.Time
}

// Deduper computes content hashes and collapses duplicates within a rolling
// window.
type Deduper struct {
	jobs   JobLookup
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Deduper from cfg.
func New(cfg Config) *Deduper {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Deduper{
		jobs:   cfg.Jobs,
		window: window,
		logger: logging.Default(cfg.Logger).With("component", "dedupe"),
		now:    now,
	}
}

// ContentHash computes content_hash = H(normalize(title) ‖ normalize(company)
// ‖ normalize(location) ‖ normalize(apply_url)).
func ContentHash(title, company, locationRaw, applyURL string) string {
	parts := strings.Join([]string{
		normalize(title),
		normalize(company),
		normalize(locationRaw),
		normalize(applyURL),
	}, "\x1f")
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])
}

// normalize folds case and collapses whitespace so the content hash is
// invariant under whitespace/case differences between postings.
func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// Result reports what the Deduper decided for one JobCandidate.
type Result struct {
	ContentHash string
	IsDuplicate bool
	// ExistingJobID is set when IsDuplicate is true: the Job the candidate
	// collapsed into.
	ExistingJobID string
}

// Resolve computes the candidate's content hash and, if a Job (active or
// not) with the same hash was seen within the window, merges into it (updating
// last_seen_at and filling any previously-null fields) instead of letting
// the candidate become a new Job.
func (d *Deduper) Resolve(ctx context.Context, cand model.JobCandidate) (Result, error) {
	hash := ContentHash(cand.Title, cand.CompanyRaw, cand.Location.Raw, cand.Apply.URL)

	since := d.now().Add(-d.window)
	matches, err := d.jobs.FindByContentHash(ctx, hash, since)
	if err != nil {
		return Result{}, fmt.Errorf("dedupe: lookup content hash: %w", err)
	}
	if len(matches) == 0 {
		return Result{ContentHash: hash}, nil
	}

	existing := earliestJob(matches)
	merged := mergeJob(existing, cand, d.now())
	if err := d.jobs.UpdateJob(ctx, merged); err != nil {
		return Result{}, fmt.Errorf("dedupe: update merged job: %w", err)
	}

	d.logger.Debug("collapsed duplicate", "content_hash", hash, "job_id", existing.ID)
	return Result{
		ContentHash:   hash,
		IsDuplicate:   true,
		ExistingJobID: existing.ID.String(),
	}, nil
}

// earliestJob picks the record that persists: the earlier record wins.
func earliestJob(jobs []model.Job) model.Job {
	earliest := jobs[0]
	for _, j := range jobs[1:] {
		if j.CreatedAt.Before(earliest.CreatedAt) {
			earliest = j
		}
	}
	return earliest
}

// mergeJob keeps the earlier record (existing) as the persisted Job,
// advances LastSeenAt, and fills any fields that were null/zero on the
// existing record from the new candidate.
func mergeJob(existing model.Job, cand model.JobCandidate, now time.Time) model.Job {
	merged := existing
	merged.LastSeenAt = now

	if merged.SalaryMonthlyINR == nil && cand.SalaryMonthlyINR != nil {
		merged.SalaryMonthlyINR = cand.SalaryMonthlyINR
	}
	if len(merged.Skills) == 0 && len(cand.Skills) > 0 {
		merged.Skills = cand.Skills
	}
	if merged.Apply.URL == "" && cand.Apply.URL != "" {
		merged.Apply.URL = cand.Apply.URL
	}
	if len(merged.Apply.Emails) == 0 && len(cand.Apply.Emails) > 0 {
		merged.Apply.Emails = cand.Apply.Emails
	}
	if len(merged.Apply.Phones) == 0 && len(cand.Apply.Phones) > 0 {
		merged.Apply.Phones = cand.Apply.Phones
	}
	if merged.Experience.MinYears == nil && cand.Experience.MinYears != nil {
		merged.Experience.MinYears = cand.Experience.MinYears
	}
	if merged.Experience.MaxYears == nil && cand.Experience.MaxYears != nil {
		merged.Experience.MaxYears = cand.Experience.MaxYears
	}

	return merged
}
