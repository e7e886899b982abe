// Package persist implements the Persister: the company-resolve /
// job-insert / raw-message-update / channel-counter commit sequence.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/channel"
	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/quality"
	"jobscrape/internal/rawstore"
)

// CompanyStore is the narrow company-resolution slice of store.CompanyStore
// the Persister needs.
type CompanyStore interface {
	FindOrCreate(ctx context.Context, canonicalName string) (model.Company, error)
}

// JobStore is the narrow job-insert slice of store.JobStore the Persister
// needs.
type JobStore interface {
	CreateJob(ctx context.Context, job model.Job) error
}

// RawMessageUpdater is the narrow slice of rawstore.Store the Persister
// needs to close out the originating RawMessage.
type RawMessageUpdater interface {
	MarkProcessed(ctx context.Context, id uuid.UUID, outcome model.ProcessingOutcome, jobID *uuid.UUID) error
}

// ChannelCounters is the narrow slice of channel.Registry the Persister
// needs to bump per-channel running totals.
type ChannelCounters interface {
	MarkScraped(ctx context.Context, channelID int, newLastSeenID *int64, messagesDelta, jobMessagesDelta, qualityJobsDelta int64, scrapedAt time.Time) error
}

// Config holds the Persister's dependencies.
type Config struct {
	Companies  CompanyStore
	Jobs       JobStore
	RawMsgs    RawMessageUpdater
	Channels   ChannelCounters
	MinQuality float64 // 0 defaults to quality.MinQuality
	Logger     *slog.Logger
	Now        func() time.Time
}

// Persister executes the company-resolve / job-insert / raw-message-update /
// channel-counter sequence for one outcome: either a fresh, deduplicated
// JobCandidate becoming a Job, or a candidate collapsing into dedupe, or a
// message classified as not a job.
type Persister struct {
	companies  CompanyStore
	jobs       JobStore
	rawMsgs    RawMessageUpdater
	channels   ChannelCounters
	minQuality float64
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Persister from cfg.
func New(cfg Config) *Persister {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Persister{
		companies:  cfg.Companies,
		jobs:       cfg.Jobs,
		rawMsgs:    cfg.RawMsgs,
		channels:   cfg.Channels,
		minQuality: cfg.MinQuality,
		logger:     logging.Default(cfg.Logger).With("component", "persist"),
		now:        now,
	}
}

// Outcome describes the terminal disposition of a RawMessage's
// classify/extract/dedupe/quality pipeline for one candidate.
type Outcome struct {
	// ChannelID is the integer ID of the channel the message came from
	// (resolved by the caller, which holds the channel registry).
	ChannelID int

	// RawMessageID is the message the candidate was extracted from.
	RawMessageID uuid.UUID

	// Candidate is the extracted JobCandidate. Ignored when Outcome is
	// OutcomeNotAJob.
	Candidate model.JobCandidate

	// ContentHash is the Deduper's computed hash, stamped onto the Job row.
	ContentHash string

	// Score is the Quality Scorer's output for Candidate.
	Score quality.Score

	// Classification is the terminal tag: job, duplicate, or not_a_job.
	Classification model.ProcessingOutcome

	// ExistingJobID is the Job the candidate collapsed into, set only when
	// Classification is OutcomeDuplicate. The Deduper has already merged
	// the candidate's novel fields into that Job; the Persister does not
	// create a second row, it only stamps the RawMessage with the id.
	ExistingJobID uuid.UUID
}

// Persist runs the commit sequence: resolve the Company, insert the Job,
// update the originating RawMessage, update the owning Channel's counters.
//
// The three backends involved (relational store, document store, channel
// registry) are independent systems with no shared transaction coordinator,
// so Persist executes sequentially rather than inside a single database
// transaction: if an update after the Job insert fails, the RawMessage stays
// unprocessed and is safely reprocessable, since re-extraction yields the
// same content hash and the Deduper collapses the retry into the
// already-inserted Job instead of duplicating it.
func (p *Persister) Persist(ctx context.Context, outcome Outcome) error {
	if outcome.Classification == model.OutcomeNotAJob {
		return p.finishRawMessage(ctx, outcome, nil)
	}

	if outcome.Classification == model.OutcomeDuplicate {
		// The Deduper already merged this candidate into ExistingJobID; no
		// new row to create, just close out the RawMessage and still credit
		// the owning channel for having surfaced a job message.
		jobID := outcome.ExistingJobID
		if err := p.finishRawMessage(ctx, outcome, &jobID); err != nil {
			return err
		}
		return p.bumpChannelCounters(ctx, outcome)
	}

	company, err := p.companies.FindOrCreate(ctx, outcome.Candidate.CompanyRaw)
	if err != nil {
		return fmt.Errorf("persist: resolve company %q: %w", outcome.Candidate.CompanyRaw, err)
	}

	jobID := uuid.New()
	job := p.buildJob(jobID, company.ID, outcome)

	if err := p.jobs.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("persist: create job: %w", err)
	}

	if err := p.finishRawMessage(ctx, outcome, &jobID); err != nil {
		return err
	}

	if err := p.bumpChannelCounters(ctx, outcome); err != nil {
		return err
	}

	p.logger.Info("persisted job", "job_id", jobID, "is_active", job.IsActive, "outcome", outcome.Classification)
	return nil
}

func (p *Persister) finishRawMessage(ctx context.Context, outcome Outcome, jobID *uuid.UUID) error {
	if err := p.rawMsgs.MarkProcessed(ctx, outcome.RawMessageID, outcome.Classification, jobID); err != nil {
		return fmt.Errorf("persist: mark raw message processed: %w", err)
	}
	return nil
}

func (p *Persister) bumpChannelCounters(ctx context.Context, outcome Outcome) error {
	var jobMessagesDelta, qualityJobsDelta int64
	if outcome.Classification == model.OutcomeJob || outcome.Classification == model.OutcomeDuplicate {
		jobMessagesDelta = 1
		if outcome.Classification == model.OutcomeJob && quality.IsActive(outcome.Score, p.minQuality) {
			qualityJobsDelta = 1
		}
	}
	if err := p.channels.MarkScraped(ctx, outcome.ChannelID, nil, 0, jobMessagesDelta, qualityJobsDelta, time.Time{}); err != nil {
		return fmt.Errorf("persist: update channel counters: %w", err)
	}
	return nil
}

func (p *Persister) buildJob(id uuid.UUID, companyID int, outcome Outcome) model.Job {
	cand := outcome.Candidate
	now := p.now()
	return model.Job{
		ID:               id,
		CompanyID:        companyID,
		SourceMessageID:  outcome.RawMessageID,
		Title:            cand.Title,
		Location:         cand.Location,
		Experience:       cand.Experience,
		SalaryMonthlyINR: cand.SalaryMonthlyINR,
		Skills:           cand.Skills,
		Category:         cand.Category,
		Apply:            cand.Apply,
		QualityScore:     outcome.Score.QualityScore,
		RelevanceScore:   outcome.Score.RelevanceScore,
		ContentHash:      outcome.ContentHash,
		IsActive:         quality.IsActive(outcome.Score, p.minQuality),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
}

var _ ChannelCounters = (*channel.Registry)(nil)
var _ RawMessageUpdater = (rawstore.Store)(nil)
