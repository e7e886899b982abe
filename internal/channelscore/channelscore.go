// Package channelscore implements the Channel Scorer: the periodic sweep
// that aggregates yield statistics, recomputes channel health, and
// deactivates chronically poor channels.
package channelscore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/telemetry"
)

// DefaultWindow is the lookback window for avg_job_quality_score.
const DefaultWindow = 30 * 24 * time.Hour

// ProbationThreshold is the health score below which an active channel
// drops to probation, and above which a probationary channel recovers to
// active.
const ProbationThreshold = 50.0

// DeactivationThreshold is the health score a channel must stay under for
// DeactivationWindows consecutive sweeps before it is deactivated.
const DeactivationThreshold = 30.0

// DeactivationWindows is how many consecutive sweeps a probationary channel
// may stay under DeactivationThreshold before it is deactivated.
const DeactivationWindows = 3

// RelevanceWeight and QualityWeight combine relevance_ratio and
// avg_job_quality_score into health_score, weighted equally.
const (
	RelevanceWeight = 0.5
	QualityWeight   = 0.5
)

// RawMessageLister is the narrow slice of rawstore.Store the Channel Scorer
// needs to resolve a channel's message IDs.
type RawMessageLister interface {
	ListByChannel(ctx context.Context, channelHandle string) ([]model.RawMessage, error)
}

// JobLister is the narrow slice of store.JobStore the Channel Scorer needs.
type JobLister interface {
	ListBySourceMessageIDs(ctx context.Context, ids []uuid.UUID, since time.Time) ([]model.Job, error)
}

// ChannelStore is the narrow slice of channel.Store the Channel Scorer
// needs: list channels to sweep, write the recomputed health/status back.
type ChannelStore interface {
	ActiveChannels(ctx context.Context) ([]model.Channel, error)
	Update(ctx context.Context, ch model.Channel) error
}

// Config holds the Channel Scorer's dependencies.
type Config struct {
	Channels ChannelStore
	RawMsgs  RawMessageLister
	Jobs     JobLister
	Window   time.Duration // 0 defaults to DefaultWindow
	// DeactivateAfter is how many consecutive low-health sweeps a
	// probationary channel survives before deactivation; 0 defaults to
	// DeactivationWindows.
	DeactivateAfter int
	// DeactivateBelow is the health score a sweep must stay under to count
	// toward DeactivateAfter; 0 defaults to DeactivationThreshold.
	DeactivateBelow float64
	Metrics         *telemetry.Metrics // optional
	Logger          *slog.Logger
	Now             func() time.Time
}

// Scorer runs the periodic channel-health sweep.
type Scorer struct {
	channels        ChannelStore
	rawMsgs         RawMessageLister
	jobs            JobLister
	window          time.Duration
	deactivateAfter int
	deactivateBelow float64
	metrics         *telemetry.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

// New constructs a Scorer from cfg.
func New(cfg Config) *Scorer {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	deactivateAfter := cfg.DeactivateAfter
	if deactivateAfter <= 0 {
		deactivateAfter = DeactivationWindows
	}
	deactivateBelow := cfg.DeactivateBelow
	if deactivateBelow <= 0 {
		deactivateBelow = DeactivationThreshold
	}
	return &Scorer{
		channels:        cfg.Channels,
		rawMsgs:         cfg.RawMsgs,
		jobs:            cfg.Jobs,
		window:          window,
		deactivateAfter: deactivateAfter,
		deactivateBelow: deactivateBelow,
		metrics:         cfg.Metrics,
		logger:          logging.Default(cfg.Logger).With("component", "channelscore"),
		now:             now,
	}
}

// SweepResult summarizes one channel's recomputed health for reporting.
type SweepResult struct {
	ChannelID      int
	RelevanceRatio float64
	AvgQuality     float64
	HealthScore    float64
	Status         model.ChannelStatus
	StatusChanged  bool
}

// Sweep recomputes health and status for every active/probationary channel
// and writes the result back.
func (s *Scorer) Sweep(ctx context.Context) ([]SweepResult, error) {
	channels, err := s.channels.ActiveChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("channelscore: list channels: %w", err)
	}

	results := make([]SweepResult, 0, len(channels))
	active := 0
	for _, ch := range channels {
		result, updated, err := s.scoreChannel(ctx, ch)
		if err != nil {
			s.logger.Error("failed to score channel", "channel_id", ch.ID, "error", err)
			continue
		}
		if err := s.channels.Update(ctx, updated); err != nil {
			s.logger.Error("failed to write channel score", "channel_id", ch.ID, "error", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.SetChannelHealth(ch.Handle, result.HealthScore)
		}
		if updated.Status != model.ChannelDeactivated {
			active++
		}
		results = append(results, result)
	}
	if s.metrics != nil {
		s.metrics.SetActiveChannels(active)
	}
	return results, nil
}

func (s *Scorer) scoreChannel(ctx context.Context, ch model.Channel) (SweepResult, model.Channel, error) {
	since := s.now().Add(-s.window)

	msgs, err := s.rawMsgs.ListByChannel(ctx, ch.Handle)
	if err != nil {
		return SweepResult{}, model.Channel{}, fmt.Errorf("list messages for %q: %w", ch.Handle, err)
	}
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}

	jobs, err := s.jobs.ListBySourceMessageIDs(ctx, ids, since)
	if err != nil {
		return SweepResult{}, model.Channel{}, fmt.Errorf("list jobs for %q: %w", ch.Handle, err)
	}

	relevanceRatio, avgQuality := aggregate(jobs)
	health := clamp(RelevanceWeight*relevanceRatio*100 + QualityWeight*avgQuality*100)

	updated := ch
	updated.HealthScore = health
	oldStatus := ch.Status
	updated.Status, updated.ConsecutiveLowHealthWindows, updated.DeactivationReason = s.transition(ch, health)

	return SweepResult{
		ChannelID:      ch.ID,
		RelevanceRatio: relevanceRatio,
		AvgQuality:     avgQuality,
		HealthScore:    health,
		Status:         updated.Status,
		StatusChanged:  updated.Status != oldStatus,
	}, updated, nil
}

// aggregate computes relevance_ratio (jobs IsActive / total jobs posted)
// and avg_job_quality_score across jobs within the window.
func aggregate(jobs []model.Job) (relevanceRatio, avgQuality float64) {
	total := len(jobs)
	if total == 0 {
		return 0, 0
	}
	var relevant int
	var qualitySum float64
	for _, j := range jobs {
		if j.IsActive {
			relevant++
		}
		qualitySum += j.QualityScore
	}
	relevanceRatio = float64(relevant) / float64(max(1, total))
	avgQuality = qualitySum / float64(total)
	return relevanceRatio, avgQuality
}

// transition applies the status state machine: active↔probation at the
// probation threshold, probation→deactivated after deactivateAfter
// consecutive low-health sweeps.
func (s *Scorer) transition(ch model.Channel, health float64) (model.ChannelStatus, int, string) {
	lowWindow := health < s.deactivateBelow
	consecutive := ch.ConsecutiveLowHealthWindows
	if lowWindow {
		consecutive++
	} else {
		consecutive = 0
	}

	switch ch.Status {
	case model.ChannelActive:
		if health < ProbationThreshold {
			return model.ChannelProbation, consecutive, ch.DeactivationReason
		}
		return model.ChannelActive, consecutive, ch.DeactivationReason
	case model.ChannelProbation:
		if consecutive >= s.deactivateAfter {
			return model.ChannelDeactivated, consecutive, "low yield"
		}
		if health >= ProbationThreshold {
			return model.ChannelActive, consecutive, ""
		}
		return model.ChannelProbation, consecutive, ch.DeactivationReason
	default:
		return ch.Status, consecutive, ch.DeactivationReason
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
