package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"jobscrape/internal/batcher"
	"jobscrape/internal/classify"
	"jobscrape/internal/telemetry"
)

// prometheusRegistry is the process-wide collector registry. A fresh
// registry per process (not the global DefaultRegisterer) keeps telemetry
// construction free of package-level state.
func prometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newBatchCmd(logger *slog.Logger) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Partition active channels into batches and scrape each",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, backend, modelPath := persistentFlags(cmd)
			ctx := cmd.Context()

			d, err := buildDeps(ctx, logger, homeFlag, backend, modelPath)
			if err != nil {
				return err
			}

			wh := batcher.WorkingHours{
				Location:  d.cfg.Location(),
				StartHour: d.cfg.WorkingHoursStart,
				EndHour:   d.cfg.WorkingHoursEnd,
			}
			trigger := batcher.Trigger{Force: force, Function: "batcher"}
			now := time.Now()
			if !wh.ShouldRun(trigger, now) {
				fmt.Printf("skipped: outside working-hours window (%02d:00-%02d:00 %s); pass --force to bypass\n",
					d.cfg.WorkingHoursStart, d.cfg.WorkingHoursEnd, d.cfg.Timezone)
				return nil
			}

			run, err := d.batch.RunBatch(ctx)
			if err != nil {
				return fmt.Errorf("run batch: %w", err)
			}
			fmt.Printf("run %s: status=%s accounts_used=%d groups_processed=%d messages_fetched=%d errors=%d\n",
				run.ID, run.Status, run.AccountsUsed, run.GroupsProcessed, run.MessagesFetched, run.ErrorsCount)
			for _, e := range run.Errors {
				fmt.Printf("  error: code=%s channel=%s account=%d message=%s\n", e.Code, e.ChannelHandle, e.AccountID, e.Message)
			}
			if run.Status == "failed" {
				return fmt.Errorf("batch run %s failed", run.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the working-hours window")
	return cmd
}

func newProcessCmd(logger *slog.Logger) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run classifier+extractor+persister over pending RawMessages, draining the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, backend, modelPath := persistentFlags(cmd)
			ctx := cmd.Context()

			d, err := buildDeps(ctx, logger, homeFlag, backend, modelPath)
			if err != nil {
				return err
			}

			if reset {
				n, err := d.rawMsgs.ResetStuck(ctx)
				if err != nil {
					return fmt.Errorf("reset stuck messages: %w", err)
				}
				fmt.Printf("reset %d stuck messages to unprocessed\n", n)
			}

			var total struct {
				processed, jobs, duplicates, notJobs, errs int
			}
			for {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				summary, err := d.pipe.Run(ctx)
				if err != nil {
					return fmt.Errorf("run pipeline: %w", err)
				}
				total.processed += summary.MessagesProcessed
				total.jobs += summary.JobsCreated
				total.duplicates += summary.Duplicates
				total.notJobs += summary.NotJobs
				total.errs += summary.Errors
				if summary.MessagesProcessed == 0 {
					break
				}
			}
			fmt.Printf("processed=%d jobs=%d duplicates=%d not_jobs=%d errors=%d\n",
				total.processed, total.jobs, total.duplicates, total.notJobs, total.errs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "reset messages stuck processed with no terminal outcome before draining the queue")
	return cmd
}

func newScoreChannelsCmd(logger *slog.Logger) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "score-channels",
		Short: "Recompute channel health and status from recent job yield",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, backend, modelPath := persistentFlags(cmd)
			ctx := cmd.Context()

			d, err := buildDeps(ctx, logger, homeFlag, backend, modelPath)
			if err != nil {
				return err
			}

			if reset {
				channels, err := d.channels.ActiveChannels(ctx)
				if err != nil {
					return fmt.Errorf("list channels to reset: %w", err)
				}
				for _, ch := range channels {
					if err := d.channels.ResetLowHealthStreak(ctx, ch.ID); err != nil {
						fmt.Fprintf(os.Stderr, "reset channel %d: %v\n", ch.ID, err)
					}
				}
				fmt.Printf("reset low-health streak on %d channels\n", len(channels))
			}

			results, err := d.channelSc.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep channels: %w", err)
			}
			for _, r := range results {
				fmt.Printf("channel=%d health=%.1f status=%s relevance_ratio=%.2f avg_quality=%.2f changed=%t\n",
					r.ChannelID, r.HealthScore, r.Status, r.RelevanceRatio, r.AvgQuality, r.StatusChanged)
			}
			fmt.Printf("scored %d channels\n", len(results))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "zero every active channel's consecutive-low-health-window counter before scoring")
	return cmd
}

// corpusExample is one labeled line in the retrain command's input corpus:
// a JSON Lines file, one {text, is_job} object per line.
type corpusExample struct {
	Text  string `json:"text"`
	IsJob bool   `json:"is_job"`
}

func newRetrainCmd(logger *slog.Logger) *cobra.Command {
	var corpusPath string
	var epochs int
	var learningRate float64
	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Refit the classifier model from a labeled JSON-Lines corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, modelPath := persistentFlags(cmd)
			if corpusPath == "" {
				return fmt.Errorf("--corpus is required")
			}

			examples, err := loadCorpus(corpusPath)
			if err != nil {
				return fmt.Errorf("load corpus: %w", err)
			}

			model, err := classify.Fit(examples, epochs, learningRate)
			if err != nil {
				return fmt.Errorf("fit model: %w", err)
			}

			if modelPath == "" {
				hd, err := resolveHome("", os.Getenv("HOME_DIR"))
				if err != nil {
					return fmt.Errorf("resolve home directory: %w", err)
				}
				if err := hd.EnsureExists(); err != nil {
					return err
				}
				modelPath = filepath.Join(hd.Root(), "classifier.model")
			}
			if err := model.Save(modelPath); err != nil {
				return fmt.Errorf("save model: %w", err)
			}
			fmt.Printf("trained model from %d examples, threshold=%.2f, saved to %s\n", len(examples), model.Threshold, modelPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "path to a JSON-Lines labeled corpus ({\"text\":...,\"is_job\":...} per line)")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "training epochs (0 uses the package default)")
	cmd.Flags().Float64Var(&learningRate, "learning-rate", 0, "gradient descent step size (0 uses the package default)")
	return cmd
}

func loadCorpus(path string) ([]classify.TrainingExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	var examples []classify.TrainingExample
	for {
		var ex corpusExample
		if err := dec.Decode(&ex); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return examples, err
		}
		examples = append(examples, classify.TrainingExample{Text: ex.Text, IsJob: ex.IsJob})
	}
	return examples, nil
}

func newVerifyCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report pipeline consistency violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, backend, modelPath := persistentFlags(cmd)
			ctx := cmd.Context()

			d, err := buildDeps(ctx, logger, homeFlag, backend, modelPath)
			if err != nil {
				return err
			}

			violations := 0

			// Every processed RawMessage must carry exactly one terminal
			// outcome tag.
			missing, err := d.rawMsgs.CountProcessedWithoutOutcome(ctx)
			if err != nil {
				return fmt.Errorf("count processed-without-outcome: %w", err)
			}
			if missing > 0 {
				violations++
				fmt.Printf("VIOLATION: %d RawMessages marked processed with no terminal outcome\n", missing)
			}

			// Active jobs sharing a content hash mean the dedup window was
			// bypassed somewhere; the dedup path collapses candidates into
			// the earlier job instead of inserting a second active row.
			dupes, err := d.store.ListActiveDuplicateHashes(ctx)
			if err != nil {
				return fmt.Errorf("list active duplicate hashes: %w", err)
			}
			for _, hash := range dupes {
				violations++
				fmt.Printf("VIOLATION: content hash %s carried by more than one active job\n", hash)
			}

			// Defensive only: last_seen_id is monotonic by construction
			// (channel.Registry.MarkScraped uses a compare-and-swap), so this
			// sweep is a sanity check that every active channel still carries
			// a non-negative watermark rather than a scan for regressions
			// that the write path already prevents.
			channels, err := d.channels.ActiveChannels(ctx)
			if err != nil {
				return fmt.Errorf("list channels: %w", err)
			}
			for _, ch := range channels {
				if ch.LastSeenMessageID != nil && *ch.LastSeenMessageID < 0 {
					violations++
					fmt.Printf("VIOLATION: channel %d (%s) has negative last_seen_id %d\n", ch.ID, ch.Handle, *ch.LastSeenMessageID)
				}
			}

			fmt.Printf("verify: %d channels checked, %d violations found\n", len(channels), violations)
			if violations > 0 {
				return fmt.Errorf("%d consistency violations found", violations)
			}
			return nil
		},
	}
	return cmd
}

func newServeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon: periodic batcher ticks, the daily channel-score sweep, the run watchdog, and the metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, backend, modelPath := persistentFlags(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, logger, homeFlag, backend, modelPath)
			if err != nil {
				return err
			}

			wh := batcher.WorkingHours{
				Location:  d.cfg.Location(),
				StartHour: d.cfg.WorkingHoursStart,
				EndHour:   d.cfg.WorkingHoursEnd,
			}

			if err := d.batch.RegisterWatchdog(d.cfg.RunWatchdogInterval, d.cfg.RunStaleAfter); err != nil {
				return fmt.Errorf("register watchdog: %w", err)
			}
			if err := d.batch.AddEvery("scrape-tick", d.cfg.DispatchInterval, func() {
				if !wh.ShouldRun(batcher.Trigger{Function: "batcher"}, time.Now()) {
					logger.Info("scrape tick skipped: outside working-hours window")
					return
				}
				if _, err := d.batch.RunBatch(context.Background()); err != nil {
					logger.Error("scheduled batch run failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("register scrape tick: %w", err)
			}
			if err := d.batch.AddJob("scrape-daily-sweep", "0 0 3 * * *", func() {
				if _, err := d.batch.RunBatch(context.Background()); err != nil {
					logger.Error("daily full sweep failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("register daily sweep: %w", err)
			}
			if err := d.batch.AddJob("channel-score-daily", "0 0 4 * * *", func() {
				if _, err := d.channelSc.Sweep(context.Background()); err != nil {
					logger.Error("daily channel-score sweep failed", "error", err)
				}
			}); err != nil {
				return fmt.Errorf("register channel-score sweep: %w", err)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", telemetry.Handler(d.registry))
			srv := &http.Server{Addr: d.cfg.MetricsAddr, Handler: mux}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				_ = d.batch.Stop()
			}()

			logger.Info("serving metrics", "addr", d.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		},
	}
	return cmd
}
