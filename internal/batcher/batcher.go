// Package batcher implements the Batcher: it partitions the active channel
// set into fixed-size groups, dispatches each group to a Scraper Worker, and
// rolls the results up into a single ScrapeRun record. The cron
// registration used to run batches and the watchdog sweep on a schedule
// lives in scheduler.go; Batcher is the domain logic built on top of it.
package batcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/scrape"
	"jobscrape/internal/telemetry"
)

// DefaultBatchSize is the number of channels handed to one Scraper Worker
// invocation.
const DefaultBatchSize = 50

// DefaultStaleAfter is how long a ScrapeRun may sit in the running state
// before the watchdog sweep considers it abandoned (a crashed batcher
// process, most likely) and closes it out as partial.
const DefaultStaleAfter = 30 * time.Minute

// ChannelLister is the narrow slice of channel.Registry the Batcher needs:
// the set of channels due for scraping this run.
type ChannelLister interface {
	ActiveChannels(ctx context.Context) ([]model.Channel, error)
}

// RunStore is the narrow slice of store.ScrapeRunStore the Batcher needs.
type RunStore interface {
	CreateRun(ctx context.Context, run model.ScrapeRun) error
	UpdateRun(ctx context.Context, run model.ScrapeRun) error
	ListRunning(ctx context.Context) ([]model.ScrapeRun, error)
}

// Dispatcher hands one batch of channels to a worker and blocks for its
// results. In production this is scrape.Worker.ScrapeBatch; tests and
// alternate deployments (a subprocess or remote worker pool) can substitute
// any function with this shape since the Batcher never depends on the
// worker's internals, only on this signature.
type Dispatcher func(ctx context.Context, batch []model.Channel) []scrape.Result

// Config holds the Batcher's dependencies.
type Config struct {
	Channels   ChannelLister
	Runs       RunStore
	Dispatch   Dispatcher
	BatchSize  int // 0 defaults to DefaultBatchSize
	Concurrent int // 0 defaults to 4, max batches dispatched in parallel per run
	Metrics    *telemetry.Metrics // optional
	Logger     *slog.Logger
	Now        func() time.Time
}

// Batcher owns one ScrapeRun at a time: it carves the active channel set
// into batches, dispatches them with bounded parallelism, and aggregates the
// results into the run record. The embedded Scheduler supplies cron
// registration for the periodic batch-dispatch cycle and watchdog sweep.
type Batcher struct {
	*Scheduler

	channels   ChannelLister
	runs       RunStore
	dispatch   Dispatcher
	batchSize  int
	concurrent int
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Batcher from cfg.
func New(cfg Config) (*Batcher, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrent := cfg.Concurrent
	if concurrent <= 0 {
		concurrent = 4
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.Default(cfg.Logger).With("component", "batcher")

	sched, err := newScheduler(logger, concurrent)
	if err != nil {
		return nil, fmt.Errorf("batcher: new scheduler: %w", err)
	}

	return &Batcher{
		Scheduler:  sched,
		channels:   cfg.Channels,
		runs:       cfg.Runs,
		dispatch:   cfg.Dispatch,
		batchSize:  batchSize,
		concurrent: concurrent,
		metrics:    cfg.Metrics,
		logger:     logger,
		now:        now,
	}, nil
}

// RunBatch executes one complete ScrapeRun: it creates the run record,
// partitions the active channels into batches, dispatches all batches with
// bounded parallelism, awaits every batch's completion, and writes the
// aggregated counters back before returning. It always blocks until the run
// is finished, since its whole job is to produce the final aggregate; the
// `batch` CLI command calls it directly, and RegisterWatchdog's cron job
// calls SweepStale on its own, separate interval to close out abandoned runs.
func (b *Batcher) RunBatch(ctx context.Context) (model.ScrapeRun, error) {
	run := model.ScrapeRun{
		ID:        uuid.New(),
		StartedAt: b.now(),
		Status:    model.ScrapeRunRunning,
	}
	if err := b.runs.CreateRun(ctx, run); err != nil {
		return run, fmt.Errorf("batcher: create run %s: %w", run.ID, err)
	}

	channels, err := b.channels.ActiveChannels(ctx)
	if err != nil {
		run.Status = model.ScrapeRunFailed
		run.FinishedAt = b.now()
		run.ErrorsCount = 1
		run.Errors = []model.ErrorDescriptor{{Code: "list_channels_failed", Message: err.Error()}}
		if uerr := b.runs.UpdateRun(ctx, run); uerr != nil {
			b.logger.Error("failed to record failed run", "run_id", run.ID, "error", uerr)
		}
		return run, fmt.Errorf("batcher: list active channels: %w", err)
	}
	run.GroupsProcessed = len(channels)

	batches := partition(channels, b.batchSize)
	b.logger.Info("run starting", "run_id", run.ID, "channels", len(channels), "batches", len(batches))

	results := b.dispatchAll(ctx, batches)

	accountsUsed := make(map[int]bool)
	for _, r := range results {
		run.MessagesFetched += r.MessagesFetched
		if r.AccountID != 0 {
			accountsUsed[r.AccountID] = true
		}
		if r.Err != nil {
			run.ErrorsCount++
			run.Errors = append(run.Errors, model.ErrorDescriptor{
				Code:          string(r.Outcome),
				ChannelHandle: r.ChannelHandle,
				AccountID:     r.AccountID,
				Message:       r.Err.Error(),
			})
		}
	}
	run.AccountsUsed = len(accountsUsed)
	run.FinishedAt = b.now()
	run.Status = finalStatus(run.ErrorsCount, len(results))

	if err := b.runs.UpdateRun(ctx, run); err != nil {
		return run, fmt.Errorf("batcher: update run %s: %w", run.ID, err)
	}
	if b.metrics != nil {
		b.metrics.ObserveScrapeRun(string(run.Status))
	}
	b.logger.Info("run finished", "run_id", run.ID, "status", run.Status, "errors", run.ErrorsCount)
	return run, nil
}

// dispatchAll runs every batch's Dispatcher call with at most b.concurrent
// in flight at once, and returns every channel's Result once all batches
// finish.
func (b *Batcher) dispatchAll(ctx context.Context, batches [][]model.Channel) []scrape.Result {
	sem := make(chan struct{}, b.concurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var all []scrape.Result

	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res := b.dispatch(ctx, batch)
			mu.Lock()
			all = append(all, res...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return all
}

// SweepStale closes out ScrapeRuns stuck in the running state past
// staleAfter, most likely abandoned by a crashed batcher process. Closed
// runs are marked partial rather than failed, since whatever channels they
// did reach before crashing were processed successfully.
func (b *Batcher) SweepStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	running, err := b.runs.ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("batcher: list running runs: %w", err)
	}

	cutoff := b.now().Add(-staleAfter)
	var swept int
	for _, run := range running {
		if run.StartedAt.After(cutoff) {
			continue
		}
		run.Status = model.ScrapeRunPartial
		run.FinishedAt = b.now()
		run.Errors = append(run.Errors, model.ErrorDescriptor{
			Code:    "watchdog_timeout",
			Message: fmt.Sprintf("run exceeded %s without finishing", staleAfter),
		})
		run.ErrorsCount++
		if err := b.runs.UpdateRun(ctx, run); err != nil {
			b.logger.Error("failed to close stale run", "run_id", run.ID, "error", err)
			continue
		}
		b.logger.Warn("watchdog closed stale run", "run_id", run.ID, "started_at", run.StartedAt)
		swept++
	}
	return swept, nil
}

// RegisterWatchdog schedules SweepStale every interval via the embedded
// Scheduler, using staleAfter as the abandonment threshold.
func (b *Batcher) RegisterWatchdog(interval, staleAfter time.Duration) error {
	return b.Scheduler.AddEvery("scrape-watchdog", interval, func() {
		ctx := context.Background()
		if _, err := b.SweepStale(ctx, staleAfter); err != nil {
			b.logger.Error("watchdog sweep failed", "error", err)
		}
	})
}

// partition splits channels into groups of at most size, preserving order.
func partition(channels []model.Channel, size int) [][]model.Channel {
	if len(channels) == 0 {
		return nil
	}
	batches := make([][]model.Channel, 0, (len(channels)+size-1)/size)
	for start := 0; start < len(channels); start += size {
		end := min(start+size, len(channels))
		batches = append(batches, channels[start:end])
	}
	return batches
}

// finalStatus derives a ScrapeRun's terminal status from how many of its
// channel results errored.
func finalStatus(errCount, total int) model.ScrapeRunStatus {
	switch {
	case errCount == 0:
		return model.ScrapeRunSuccess
	case total > 0 && errCount >= total:
		return model.ScrapeRunFailed
	default:
		return model.ScrapeRunPartial
	}
}
