// Package pipeline wires the Classifier, Extractor, Deduper, Quality Scorer,
// and Persister into the "process" stage: Classifier → Extractor →
// Persister per RawMessage, with the RawMessage's processing flag as the
// sole synchronization point.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"jobscrape/internal/classify"
	"jobscrape/internal/dedupe"
	"jobscrape/internal/extract"
	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/persist"
	"jobscrape/internal/quality"
	"jobscrape/internal/telemetry"
)

// DefaultBatchSize is how many pending RawMessages one Run call drains at a
// time.
const DefaultBatchSize = 200

// RawMessageSource is the narrow slice of rawstore.Store the pipeline needs
// to find its work queue.
type RawMessageSource interface {
	ListUnprocessed(ctx context.Context, limit int) ([]model.RawMessage, error)
}

// ChannelResolver is the narrow slice of channel.Registry the pipeline needs
// to turn a RawMessage's channel handle into the integer id the Persister's
// counters key on.
type ChannelResolver interface {
	Resolve(ctx context.Context, handle string) (model.Channel, error)
}

// Config holds the processing pipeline's dependencies.
type Config struct {
	RawMsgs    RawMessageSource
	Channels   ChannelResolver
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Deduper    *dedupe.Deduper
	Scorer     *quality.Scorer
	Persister  *persist.Persister
	BatchSize  int // 0 defaults to DefaultBatchSize
	Metrics    *telemetry.Metrics // optional
	Logger     *slog.Logger
}

// Pipeline drains pending RawMessages through classification, extraction,
// deduplication, scoring, and persistence.
type Pipeline struct {
	rawMsgs    RawMessageSource
	channels   ChannelResolver
	classifier *classify.Classifier
	extractor  *extract.Extractor
	deduper    *dedupe.Deduper
	scorer     *quality.Scorer
	persister  *persist.Persister
	batchSize  int
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// New constructs a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		rawMsgs:    cfg.RawMsgs,
		channels:   cfg.Channels,
		classifier: cfg.Classifier,
		extractor:  cfg.Extractor,
		deduper:    cfg.Deduper,
		scorer:     cfg.Scorer,
		persister:  cfg.Persister,
		batchSize:  batchSize,
		metrics:    cfg.Metrics,
		logger:     logging.Default(cfg.Logger).With("component", "pipeline"),
	}
}

// Summary counts what one Run call did, for the `process` CLI subcommand's
// report.
type Summary struct {
	MessagesProcessed int
	JobsCreated       int
	Duplicates        int
	NotJobs           int
	Errors            int
}

// Run drains up to one batch of pending RawMessages, processing each
// independently: a failure on one message is logged and counted, never
// aborting the rest of the batch, since every message is idempotently
// reprocessable.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	msgs, err := p.rawMsgs.ListUnprocessed(ctx, p.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("pipeline: list unprocessed: %w", err)
	}

	var summary Summary
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		summary.MessagesProcessed++
		outcome, category, err := p.processOne(ctx, msg)
		if err != nil {
			summary.Errors++
			if p.metrics != nil {
				p.metrics.ObserveError("pipeline")
			}
			p.logger.Error("failed to process message", "raw_message_id", msg.ID, "error", err)
			continue
		}
		if p.metrics != nil {
			p.metrics.ObserveOutcome(category, string(outcome))
		}
		switch outcome {
		case model.OutcomeJob:
			summary.JobsCreated++
		case model.OutcomeDuplicate:
			summary.Duplicates++
		case model.OutcomeNotAJob:
			summary.NotJobs++
		}
	}
	return summary, nil
}

// processOne runs one RawMessage through classify → extract → dedupe →
// score → persist and returns its terminal classification plus the last
// candidate's category for metrics labeling.
func (p *Pipeline) processOne(ctx context.Context, msg model.RawMessage) (model.ProcessingOutcome, string, error) {
	ch, err := p.channels.Resolve(ctx, msg.ChannelHandle)
	if err != nil {
		return "", "", fmt.Errorf("resolve channel %q: %w", msg.ChannelHandle, err)
	}

	result := p.classifier.Classify(msg.Body)
	if !result.IsJob {
		outcome := persist.Outcome{ChannelID: ch.ID, RawMessageID: msg.ID, Classification: model.OutcomeNotAJob}
		if err := p.persister.Persist(ctx, outcome); err != nil {
			return "", "", fmt.Errorf("persist not_a_job: %w", err)
		}
		return model.OutcomeNotAJob, "", nil
	}

	urls, _ := classify.ExtractURLsAndEmails(msg.Body)
	candidates := p.extractor.Extract(msg, urls)
	if len(candidates) == 0 {
		outcome := persist.Outcome{ChannelID: ch.ID, RawMessageID: msg.ID, Classification: model.OutcomeNotAJob}
		if err := p.persister.Persist(ctx, outcome); err != nil {
			return "", "", fmt.Errorf("persist no-viable-candidate: %w", err)
		}
		return model.OutcomeNotAJob, "", nil
	}

	// A single message can carry more than one sub-posting; every candidate
	// is persisted as its own Job, but RawMessage has one terminal outcome
	// and one job_id, so the last candidate processed determines the
	// recorded tag.
	var last model.ProcessingOutcome
	var lastCategory string
	for _, cand := range candidates {
		cand.SourceMessageID = msg.ID
		cand.ModelConfidence = result.Confidence
		outcome, err := p.processCandidate(ctx, ch.ID, msg.ID, cand)
		if err != nil {
			return "", "", err
		}
		last = outcome
		lastCategory = cand.Category
	}
	return last, lastCategory, nil
}

func (p *Pipeline) processCandidate(ctx context.Context, channelID int, msgID uuid.UUID, cand model.JobCandidate) (model.ProcessingOutcome, error) {
	dedupeResult, err := p.deduper.Resolve(ctx, cand)
	if err != nil {
		return "", fmt.Errorf("dedupe: %w", err)
	}
	cand.ContentHash = dedupeResult.ContentHash

	score := p.scorer.Score(cand)
	cand.QualityScore = score.QualityScore
	cand.RelevanceScore = score.RelevanceScore
	cand.MeetsRelevance = score.MeetsRelevance

	if dedupeResult.IsDuplicate {
		existingID, err := uuid.Parse(dedupeResult.ExistingJobID)
		if err != nil {
			return "", fmt.Errorf("parse existing job id %q: %w", dedupeResult.ExistingJobID, err)
		}
		outcome := persist.Outcome{
			ChannelID:      channelID,
			RawMessageID:   msgID,
			Candidate:      cand,
			ContentHash:    dedupeResult.ContentHash,
			Score:          score,
			Classification: model.OutcomeDuplicate,
			ExistingJobID:  existingID,
		}
		if err := p.persister.Persist(ctx, outcome); err != nil {
			return "", fmt.Errorf("persist duplicate: %w", err)
		}
		return model.OutcomeDuplicate, nil
	}

	outcome := persist.Outcome{
		ChannelID:      channelID,
		RawMessageID:   msgID,
		Candidate:      cand,
		ContentHash:    dedupeResult.ContentHash,
		Score:          score,
		Classification: model.OutcomeJob,
	}
	if err := p.persister.Persist(ctx, outcome); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	return model.OutcomeJob, nil
}
