// Package telemetry exposes process self-observability metrics: per-stage
// pipeline counters, account/channel health gauges, and the scrape-run
// aggregate counters, scraped by Prometheus.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector jobscrape registers. It is constructed once
// per process and threaded through the packages that need to record
// observations, the same dependency-injected shape as the rest of the
// ambient stack — no package-level globals.
type Metrics struct {
	MessagesFetched  *prometheus.CounterVec
	JobsExtracted    *prometheus.CounterVec
	DuplicatesFound  prometheus.Counter
	NotAJob          prometheus.Counter
	PipelineErrors   *prometheus.CounterVec
	ScrapeRunResult  *prometheus.CounterVec
	GovernorWaits    *prometheus.HistogramVec
	AccountHealth    *prometheus.GaugeVec
	ChannelHealth    *prometheus.GaugeVec
	AccountsBanned   prometheus.Gauge
	ActiveChannels   prometheus.Gauge
}

// New constructs a Metrics and registers all its collectors against reg.
// Tests typically pass a fresh prometheus.NewRegistry() to stay isolated
// from the global default registry; cmd/jobscrape passes the process-wide
// registry it also hands to Handler.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		MessagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobscrape_messages_fetched_total",
			Help: "Total raw messages fetched from channels by the Scraper Worker.",
		}, []string{"channel"}),
		JobsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobscrape_jobs_extracted_total",
			Help: "Total job candidates extracted and persisted as new Job rows.",
		}, []string{"category"}),
		DuplicatesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscrape_duplicates_found_total",
			Help: "Total job candidates collapsed into an existing Job by the Deduper.",
		}),
		NotAJob: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobscrape_not_a_job_total",
			Help: "Total raw messages classified as not a job posting.",
		}),
		PipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobscrape_pipeline_errors_total",
			Help: "Total errors raised while processing a raw message, by stage.",
		}, []string{"stage"}),
		ScrapeRunResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobscrape_scrape_runs_total",
			Help: "Total completed ScrapeRuns, by terminal status.",
		}, []string{"status"}),
		GovernorWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobscrape_governor_wait_seconds",
			Help:    "Time a scrape request waited on the Rate-Limit Governor before being admitted.",
			Buckets: []float64{0, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"account_id"}),
		AccountHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobscrape_account_health_state",
			Help: "Account health state (0=healthy, 1=degraded, 2=banned).",
		}, []string{"account_id"}),
		ChannelHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jobscrape_channel_health_score",
			Help: "Channel Scorer's current health score in [0,100] for a channel.",
		}, []string{"channel"}),
		AccountsBanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobscrape_accounts_banned",
			Help: "Current count of accounts in the banned state.",
		}),
		ActiveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobscrape_active_channels",
			Help: "Current count of channels eligible for scraping (active or probation).",
		}),
	}

	reg.MustRegister(
		m.MessagesFetched,
		m.JobsExtracted,
		m.DuplicatesFound,
		m.NotAJob,
		m.PipelineErrors,
		m.ScrapeRunResult,
		m.GovernorWaits,
		m.AccountHealth,
		m.ChannelHealth,
		m.AccountsBanned,
		m.ActiveChannels,
	)
	return m
}

// Handler returns the HTTP handler to mount at /metrics for reg, the same
// registry passed as the Registerer to New.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveOutcome records one pipeline pass's terminal classification.
// category is only meaningful when classification is "job".
func (m *Metrics) ObserveOutcome(category, classification string) {
	switch classification {
	case "job":
		m.JobsExtracted.WithLabelValues(category).Inc()
	case "duplicate":
		m.DuplicatesFound.Inc()
	case "not_a_job":
		m.NotAJob.Inc()
	}
}

// ObserveError records a pipeline-stage error.
func (m *Metrics) ObserveError(stage string) {
	m.PipelineErrors.WithLabelValues(stage).Inc()
}

// ObserveScrapeRun records a completed ScrapeRun's terminal status.
func (m *Metrics) ObserveScrapeRun(status string) {
	m.ScrapeRunResult.WithLabelValues(status).Inc()
}

// ObserveGovernorWait records how long one platform call waited on the
// Rate-Limit Governor before being admitted.
func (m *Metrics) ObserveGovernorWait(accountID int, waited time.Duration) {
	m.GovernorWaits.WithLabelValues(strconv.Itoa(accountID)).Observe(waited.Seconds())
}

// ObserveFetched adds n to a channel's fetched-message counter.
func (m *Metrics) ObserveFetched(channel string, n int) {
	m.MessagesFetched.WithLabelValues(channel).Add(float64(n))
}

// SetAccountHealth records an account's current health state
// (0=healthy, 1=degraded, 2=banned).
func (m *Metrics) SetAccountHealth(accountID int, state float64) {
	m.AccountHealth.WithLabelValues(strconv.Itoa(accountID)).Set(state)
}

// AccountBanned bumps the banned-accounts gauge on a new ban.
func (m *Metrics) AccountBanned() {
	m.AccountsBanned.Inc()
}

// SetChannelHealth records a channel's recomputed health score.
func (m *Metrics) SetChannelHealth(channel string, score float64) {
	m.ChannelHealth.WithLabelValues(channel).Set(score)
}

// SetActiveChannels records how many channels are currently eligible for
// scraping.
func (m *Metrics) SetActiveChannels(n int) {
	m.ActiveChannels.Set(float64(n))
}
