package batcher

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler is the shared cron scheduler used by the Batcher. The periodic
// batch-dispatch cycle and the daily Channel Scorer sweep both register jobs
// here rather than maintaining their own gocron instances.
//
// jobscrape runs every stage from the CLI (batch, process, score-channels,
// ...) rather than through a polled admin API, so the scheduler only needs to
// run named cron jobs to completion and shut down cleanly; it doesn't track
// per-run progress or one-time job submissions.
type Scheduler struct {
	mu     sync.Mutex
	sched  gocron.Scheduler
	jobs   map[string]gocron.Job // name -> job, guards against duplicate registration
	logger *slog.Logger
}

func newScheduler(logger *slog.Logger, maxConcurrent int) (*Scheduler, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	s, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(uint(maxConcurrent), gocron.LimitModeWait),
	)
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	s.Start()
	return &Scheduler{
		sched:  s,
		jobs:   make(map[string]gocron.Job),
		logger: logger,
	}, nil
}

// AddJob registers a named cron job. The name must be unique across the
// scheduler; cronExpr is a seconds-aware cron expression (six fields, or a
// descriptor like "@every 1h"). The task function and its arguments are
// passed to gocron.NewTask.
func (s *Scheduler) AddJob(name, cronExpr string, taskFn any, args ...any) error {
	return s.addJob(name, cronExpr, gocron.CronJob(cronExpr, true), taskFn, args...)
}

// AddEvery registers a named job on a fixed interval, for schedules that
// come from a configured time.Duration rather than a cron expression.
func (s *Scheduler) AddEvery(name string, every time.Duration, taskFn any, args ...any) error {
	return s.addJob(name, every.String(), gocron.DurationJob(every), taskFn, args...)
}

func (s *Scheduler) addJob(name, schedule string, def gocron.JobDefinition, taskFn any, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}

	j, err := s.sched.NewJob(
		def,
		gocron.NewTask(taskFn, args...),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", name, err)
	}

	s.jobs[name] = j
	s.logger.Info("scheduled job added", "name", name, "schedule", schedule)
	return nil
}

// Stop shuts down the underlying cron scheduler, waiting for in-flight jobs
// to finish.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}
