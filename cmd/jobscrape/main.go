// Command jobscrape runs the job-posting scrape and extraction pipeline.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"jobscrape/internal/account"
	accountmem "jobscrape/internal/account/memory"
	"jobscrape/internal/batcher"
	"jobscrape/internal/channel"
	channelmem "jobscrape/internal/channel/memory"
	"jobscrape/internal/channelscore"
	"jobscrape/internal/classify"
	"jobscrape/internal/dedupe"
	"jobscrape/internal/extract"
	"jobscrape/internal/govern"
	"jobscrape/internal/home"
	"jobscrape/internal/jobconfig"
	"jobscrape/internal/logging"
	"jobscrape/internal/persist"
	"jobscrape/internal/pipeline"
	"jobscrape/internal/platform/telegram"
	"jobscrape/internal/quality"
	"jobscrape/internal/rawstore"
	rawstoreelastic "jobscrape/internal/rawstore/elastic"
	rawstoremem "jobscrape/internal/rawstore/memory"
	"jobscrape/internal/scrape"
	"jobscrape/internal/session"
	sessionfile "jobscrape/internal/session/file"
	sessionmem "jobscrape/internal/session/memory"
	"jobscrape/internal/store"
	storemem "jobscrape/internal/store/memory"
	"jobscrape/internal/store/postgres"
	"jobscrape/internal/telemetry"
)

var version = "dev"

func main() {
	logCfg, err := jobconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, logCfg.ParsedLogLevel())
	for component, level := range logCfg.ParsedComponentLogLevels() {
		filterHandler.SetLevel(component, level)
	}
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "jobscrape",
		Short: "Job-posting scrape, classification, and extraction pipeline",
	}
	rootCmd.PersistentFlags().String("home", "", "home directory for session blobs (default: platform config dir)")
	rootCmd.PersistentFlags().String("backend", "postgres", "storage backend: postgres or memory")
	rootCmd.PersistentFlags().String("model", "", "path to the trained classifier model file (default: <home>/classifier.model)")

	rootCmd.AddCommand(
		newBatchCmd(logger),
		newProcessCmd(logger),
		newScoreChannelsCmd(logger),
		newRetrainCmd(logger),
		newVerifyCmd(logger),
		newServeCmd(logger),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// persistentFlags pulls the three root-level flags shared by every
// subcommand that needs to build the dependency graph.
func persistentFlags(cmd *cobra.Command) (homeFlag, backend, modelPath string) {
	homeFlag, _ = cmd.Flags().GetString("home")
	backend, _ = cmd.Flags().GetString("backend")
	modelPath, _ = cmd.Flags().GetString("model")
	return
}

// deps is the full set of wired dependencies a subcommand draws from. Not
// every subcommand needs every field; each constructs only what it calls.
type deps struct {
	cfg       jobconfig.Config
	homeDir   home.Dir
	logger    *slog.Logger
	redis     *redis.Client
	modelPath string

	store        store.Store
	channels     *channel.Registry
	channelStore channel.Store
	accountStore account.Store
	accounts     *account.Pool
	rawMsgs      rawstore.Store
	sessions     session.Store

	classifier *classify.Classifier
	extractor  *extract.Extractor
	deduper    *dedupe.Deduper
	scorer     *quality.Scorer
	persister  *persist.Persister
	worker     *scrape.Worker
	batch      *batcher.Batcher
	channelSc  *channelscore.Scorer
	pipe       *pipeline.Pipeline
	metrics    *telemetry.Metrics
	registry   *prometheus.Registry
}

// buildDeps wires every backend-agnostic component plus the backend-switched
// stores, per the --backend flag. Not every caller needs the scrape/batch
// half of the graph (e.g. `process` only touches the pipeline half;
// `retrain` does not call buildDeps at all); callers that don't need it still pay for constructing it, since
// nothing here performs I/O eagerly beyond opening pool/client handles.
func buildDeps(ctx context.Context, logger *slog.Logger, homeFlag, backend, modelPath string) (*deps, error) {
	cfg, err := jobconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	hd, err := resolveHome(homeFlag, cfg.HomeDir)
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if err := hd.EnsureExists(); err != nil {
		return nil, err
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	d := &deps{cfg: cfg, homeDir: hd, logger: logger, redis: rdb}

	if err := d.openBackend(ctx, backend); err != nil {
		return nil, err
	}

	d.registry = prometheusRegistry()
	d.metrics = telemetry.New(d.registry)

	d.accounts = account.New(d.accountStore, cfg.AccountLeaseTTL, cfg.DegradeAfterErrors,
		cfg.MaxJoinsPerDayPerAccount, account.WithMetrics(d.metrics))

	if err := d.loadClassifier(modelPath); err != nil {
		return nil, err
	}
	d.extractor = extract.New(logger, extract.WithMinConfidence(cfg.MinExtractConfidence))
	d.deduper = dedupe.New(dedupe.Config{Jobs: d.store, Window: cfg.DedupeWindow, Logger: logger})

	prefs, err := d.store.GetPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	d.scorer = quality.New(prefs)

	d.persister = persist.New(persist.Config{
		Companies:  d.store,
		Jobs:       d.store,
		RawMsgs:    d.rawMsgs,
		Channels:   d.channels,
		MinQuality: cfg.MinQualityScore,
		Logger:     logger,
	})

	d.pipe = pipeline.New(pipeline.Config{
		RawMsgs:    d.rawMsgs,
		Channels:   d.channels,
		Classifier: d.classifier,
		Extractor:  d.extractor,
		Deduper:    d.deduper,
		Scorer:     d.scorer,
		Persister:  d.persister,
		BatchSize:  cfg.BatchSize,
		Metrics:    d.metrics,
		Logger:     logger,
	})

	d.channelSc = channelscore.New(channelscore.Config{
		Channels:        d.channelStore,
		RawMsgs:         d.rawMsgs,
		Jobs:            d.store,
		Window:          cfg.ChannelScoreWindow,
		DeactivateAfter: cfg.ChannelLowHealthStreakLimit,
		DeactivateBelow: cfg.ChannelHealthFloor,
		Metrics:         d.metrics,
		Logger:          logger,
	})

	sessStore, err := d.buildSessionStore(backend)
	if err != nil {
		return nil, err
	}
	d.sessions = sessStore

	governor := govern.New(rdb, cfg.InterOpFloor, cfg.FloodWaitCeiling)
	clientFactory := telegram.New(telegram.Config{
		BaseURL:         cfg.PlatformGatewayURL,
		APIID:           cfg.PlatformAPIID,
		APIHash:         cfg.PlatformAPIHash,
		MaxElapsedTime:  cfg.RetryMaxElapsedTime,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}, logger)

	d.worker = scrape.New(scrape.Config{
		Accounts:       d.accounts,
		Channels:       d.channels,
		Governor:       governor,
		Sessions:       d.sessions,
		ClientFactory:  clientFactory,
		RawMsgs:        d.rawMsgs,
		FirstFetchCap:  cfg.FirstFetchCap,
		IncrementalCap: cfg.IncrementalCap,
		Metrics:        d.metrics,
		Logger:         logger,
	})

	b, err := batcher.New(batcher.Config{
		Channels:   d.channels,
		Runs:       d.store,
		Dispatch:   d.worker.ScrapeBatch,
		BatchSize:  cfg.BatchSize,
		Concurrent: cfg.MaxConcurrentWorkers,
		Metrics:    d.metrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("new batcher: %w", err)
	}
	d.batch = b

	return d, nil
}

// openBackend constructs d.store, d.channels, d.accountStore, and d.rawMsgs,
// switching on the --backend flag.
func (d *deps) openBackend(ctx context.Context, backend string) error {
	switch backend {
	case "memory":
		d.channelStore = channelmem.NewStore()
		d.channels = channel.New(d.channelStore)
		d.store = storemem.NewStore()
		d.accountStore = accountmem.NewStore()
		d.rawMsgs = rawstoremem.NewStore()
		return nil
	case "postgres":
		pool, err := postgres.Connect(ctx, d.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		d.store = postgres.New(pool)
		d.channelStore = postgres.NewChannelStore(pool)
		d.channels = channel.New(d.channelStore)
		d.accountStore = postgres.NewAccountStore(pool, d.redis)

		rs, err := rawstoreelastic.New(rawstoreelastic.Config{
			Addresses: strings.Split(d.cfg.ElasticURL, ","),
			Index:     d.cfg.ElasticIndex,
			Logger:    d.logger,
		})
		if err != nil {
			return fmt.Errorf("connect elasticsearch: %w", err)
		}
		d.rawMsgs = rs
		return nil
	default:
		return fmt.Errorf("unknown backend: %q", backend)
	}
}

func (d *deps) buildSessionStore(backend string) (session.Store, error) {
	if backend == "memory" {
		return sessionmem.NewStore(), nil
	}
	st, err := sessionfile.New(d.homeDir, sessionfile.Config{Logger: d.logger})
	if err != nil {
		return nil, fmt.Errorf("new session store: %w", err)
	}
	return st, nil
}

func (d *deps) loadClassifier(modelPath string) error {
	if modelPath == "" {
		modelPath = filepath.Join(d.homeDir.Root(), "classifier.model")
	}
	m, err := classify.LoadModel(modelPath)
	if err != nil {
		return fmt.Errorf("load classifier model %s: %w", modelPath, err)
	}
	d.classifier = classify.New(m, d.logger)
	d.modelPath = modelPath
	return nil
}

func resolveHome(flagValue, envValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	if envValue != "" {
		return home.New(envValue), nil
	}
	return home.Default()
}
