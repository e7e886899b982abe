// Package scrape implements the Scraper Worker: leasing an account,
// fetching new messages for one channel through the governor, and upserting
// them into the raw message store.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobscrape/internal/account"
	"jobscrape/internal/channel"
	"jobscrape/internal/govern"
	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/platform"
	"jobscrape/internal/rawstore"
	"jobscrape/internal/session"
	"jobscrape/internal/telemetry"
)

// FirstFetchCap is the default maximum number of messages fetched when a
// channel has never been scraped, bounding first-contact backlog ingestion.
const FirstFetchCap = 10

// IncrementalCap is the default maximum number of messages fetched when a
// channel has an existing watermark.
const IncrementalCap = 100

// LeaseTTL is a two-minute lease length for one channel's fetch. The Worker
// does not pass it to the Account Pool: the lease it holds lasts for the
// pool's own lease TTL.
const LeaseTTL = 2 * time.Minute

// Outcome tags what happened to one channel in a batch, for the Batcher's
// aggregate ScrapeRun counters.
type Outcome string

const (
	OutcomeFetched            Outcome = "fetched"
	OutcomeNoAccountAvailable Outcome = "no_account_available"
	OutcomeRateLimited        Outcome = "rate_limited"
	OutcomeChannelDeactivated Outcome = "channel_deactivated"
	OutcomeUnexpectedError    Outcome = "unexpected_error"
	OutcomeCancelled          Outcome = "cancelled"
)

// Result reports the outcome of scraping a single channel.
type Result struct {
	ChannelID       int
	ChannelHandle   string
	AccountID       int
	Outcome         Outcome
	MessagesFetched int
	Err             error
}

// Config holds the Scraper Worker's dependencies.
type Config struct {
	Accounts       *account.Pool
	Channels       *channel.Registry
	Governor       *govern.Governor
	Sessions       session.Store
	ClientFactory  platform.ClientFactory
	RawMsgs        rawstore.Store
	FirstFetchCap  int
	IncrementalCap int
	Metrics        *telemetry.Metrics // optional
	Logger         *slog.Logger
	Now            func() time.Time
}

// Worker scrapes a batch of channels, serially leasing and releasing an
// account per channel. Cross-batch parallelism is the Batcher's concern;
// Worker itself is single-threaded over its assigned batch.
type Worker struct {
	accounts       *account.Pool
	channels       *channel.Registry
	governor       *govern.Governor
	sessions       session.Store
	clientFactory  platform.ClientFactory
	rawMsgs        rawstore.Store
	firstFetchCap  int
	incrementalCap int
	metrics        *telemetry.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

// New constructs a Worker from cfg.
func New(cfg Config) *Worker {
	firstCap := cfg.FirstFetchCap
	if firstCap <= 0 {
		firstCap = FirstFetchCap
	}
	incCap := cfg.IncrementalCap
	if incCap <= 0 {
		incCap = IncrementalCap
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		accounts:       cfg.Accounts,
		channels:       cfg.Channels,
		governor:       cfg.Governor,
		sessions:       cfg.Sessions,
		clientFactory:  cfg.ClientFactory,
		rawMsgs:        cfg.RawMsgs,
		firstFetchCap:  firstCap,
		incrementalCap: incCap,
		metrics:        cfg.Metrics,
		logger:         logging.Default(cfg.Logger).With("component", "scrape"),
		now:            now,
	}
}

// ScrapeBatch scrapes each channel in batch in turn, never failing the
// whole batch on a single channel's error.
func (w *Worker) ScrapeBatch(ctx context.Context, batch []model.Channel) []Result {
	results := make([]Result, 0, len(batch))
	for _, ch := range batch {
		if ctx.Err() != nil {
			results = append(results, Result{ChannelID: ch.ID, ChannelHandle: ch.Handle, Outcome: OutcomeCancelled, Err: ctx.Err()})
			continue
		}
		results = append(results, w.scrapeChannel(ctx, ch))
	}
	return results
}

func (w *Worker) scrapeChannel(ctx context.Context, ch model.Channel) Result {
	result := Result{ChannelID: ch.ID, ChannelHandle: ch.Handle}

	lease, err := w.acquireForChannel(ctx, ch)
	if err != nil {
		result.Outcome = OutcomeNoAccountAvailable
		result.Err = fmt.Errorf("scrape: acquire account for channel %q: %w", ch.Handle, err)
		return result
	}
	result.AccountID = lease.Account.ID

	client, err := w.openClient(ctx, lease.Account.ID)
	if err != nil {
		result.Outcome = OutcomeUnexpectedError
		result.Err = fmt.Errorf("scrape: open client for account %d: %w", lease.Account.ID, err)
		_ = w.accounts.ReportError(ctx, lease, account.SoftError)
		return result
	}
	defer client.Close()

	// Every outbound platform call goes through the governor first.
	waitStart := w.now()
	if err := w.governor.Wait(ctx, lease.Account.ID); err != nil {
		result.Outcome = OutcomeCancelled
		result.Err = err
		_ = w.accounts.Release(ctx, lease)
		return result
	}
	if w.metrics != nil {
		w.metrics.ObserveGovernorWait(lease.Account.ID, w.now().Sub(waitStart))
	}

	messages, err := w.fetch(ctx, client, ch)
	if err != nil {
		return w.handleFetchError(ctx, lease, ch, err)
	}

	stored, newest := w.storeMessages(ctx, ch, lease.Account.ID, messages)
	result.MessagesFetched = stored
	result.Outcome = OutcomeFetched
	if w.metrics != nil {
		w.metrics.ObserveFetched(ch.Handle, stored)
	}

	if err := w.updateChannel(ctx, ch, newest, int64(stored)); err != nil {
		result.Err = fmt.Errorf("scrape: update channel %q: %w", ch.Handle, err)
	}

	if err := w.accounts.ReportSuccess(ctx, lease); err != nil {
		w.logger.Error("report success failed", "account_id", lease.Account.ID, "error", err)
	}
	return result
}

// acquireForChannel leases the channel's assigned account. A channel whose
// assigned account has been banned is reassigned to whichever healthy
// account the pool hands out and put on probation by the registry; a channel
// with no assignment yet (never joined through this pipeline) is assigned on
// first lease. A lease held by another worker is a skip, not a substitute:
// no two workers may drive one account concurrently, and fetching with a
// different account than the joined one would fail anyway.
func (w *Worker) acquireForChannel(ctx context.Context, ch model.Channel) (*account.Lease, error) {
	if ch.AssignedAccountID == nil {
		lease, err := w.accounts.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if err := w.channels.AssignAccount(ctx, ch.ID, lease.Account.ID, false); err != nil {
			_ = w.accounts.Release(ctx, lease)
			return nil, err
		}
		return lease, nil
	}

	lease, err := w.accounts.AcquireByID(ctx, *ch.AssignedAccountID)
	if err == nil {
		return lease, nil
	}
	if !errors.Is(err, account.ErrAccountBanned) {
		return nil, err
	}

	// Banned assigned account: recover by reassigning to any healthy account.
	lease, acqErr := w.accounts.Acquire(ctx)
	if acqErr != nil {
		return nil, acqErr
	}
	if assignErr := w.channels.AssignAccount(ctx, ch.ID, lease.Account.ID, true); assignErr != nil {
		_ = w.accounts.Release(ctx, lease)
		return nil, assignErr
	}
	w.logger.Warn("reassigned channel away from banned account",
		"channel", ch.Handle, "old_account_id", *ch.AssignedAccountID, "new_account_id", lease.Account.ID)
	return lease, nil
}

func (w *Worker) openClient(ctx context.Context, accountID int) (platform.Client, error) {
	data, err := w.sessions.Load(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return w.clientFactory(ctx, accountID, data)
}

// fetch performs a capped initial fetch for a channel never scraped before,
// else a capped incremental fetch strictly newer than the current
// watermark.
func (w *Worker) fetch(ctx context.Context, client platform.Client, ch model.Channel) ([]platform.Message, error) {
	if ch.LastSeenMessageID == nil {
		return client.Fetch(ctx, ch.Handle, nil, w.firstFetchCap)
	}
	return client.Fetch(ctx, ch.Handle, ch.LastSeenMessageID, w.incrementalCap)
}

// handleFetchError maps each platform error class to its channel/account
// consequence.
func (w *Worker) handleFetchError(ctx context.Context, lease *account.Lease, ch model.Channel, err error) Result {
	result := Result{ChannelID: ch.ID, ChannelHandle: ch.Handle, AccountID: lease.Account.ID}

	var floodWait platform.FloodWaitError
	if errors.As(err, &floodWait) {
		govErr := w.governor.ReportFloodWait(ctx, lease.Account.ID, floodWait.Wait)
		_ = w.accounts.ReportError(ctx, lease, account.SoftError)
		result.Outcome = OutcomeRateLimited
		if govErr != nil {
			result.Err = fmt.Errorf("scrape: channel %q flood wait: %w", ch.Handle, govErr)
		}
		return result
	}

	if errors.Is(err, platform.ErrChannelPrivate) || errors.Is(err, platform.ErrUsernameInvalid) {
		_ = w.accounts.Release(ctx, lease)
		if updateErr := w.deactivateChannel(ctx, ch, err); updateErr != nil {
			w.logger.Error("failed to deactivate channel", "channel", ch.Handle, "error", updateErr)
		}
		result.Outcome = OutcomeChannelDeactivated
		result.Err = err
		return result
	}

	if errors.Is(err, platform.ErrAuthKeyInvalid) {
		_ = w.accounts.ReportError(ctx, lease, account.HardBan)
		result.Outcome = OutcomeUnexpectedError
		result.Err = fmt.Errorf("scrape: channel %q account banned: %w", ch.Handle, err)
		return result
	}

	_ = w.accounts.ReportError(ctx, lease, account.SoftError)
	result.Outcome = OutcomeUnexpectedError
	result.Err = fmt.Errorf("scrape: channel %q unexpected error: %w", ch.Handle, err)
	return result
}

// storeMessages upserts every fetched message with non-empty text and
// returns the count stored and the newest message ID seen (messages arrive
// newest-first; the watermark update still takes max(newest, current), so
// a partial batch never regresses it).
func (w *Worker) storeMessages(ctx context.Context, ch model.Channel, accountID int, messages []platform.Message) (stored int, newest int64) {
	for _, msg := range messages {
		if msg.Body == "" {
			continue
		}
		if msg.ID > newest {
			newest = msg.ID
		}
		raw := model.RawMessage{
			PlatformMessageID: msg.ID,
			ChannelHandle:     ch.Handle,
			Body:              msg.Body,
			SenderID:          msg.SenderID,
			AuthoredAt:        msg.AuthoredAt,
			FetchedAt:         w.now(),
			FetchingAccountID: accountID,
		}
		if _, err := w.rawMsgs.Upsert(ctx, raw); err != nil {
			w.logger.Error("failed to upsert raw message", "channel", ch.Handle, "platform_message_id", msg.ID, "error", err)
			continue
		}
		stored++
	}
	return stored, newest
}

// updateChannel bumps last_seen_id to max(newest_returned, current), sets
// last_scraped_at, and increments the channel counters.
func (w *Worker) updateChannel(ctx context.Context, ch model.Channel, newest int64, messagesDelta int64) error {
	var newLastSeen *int64
	if newest > 0 {
		newLastSeen = &newest
	}
	return w.channels.MarkScraped(ctx, ch.ID, newLastSeen, messagesDelta, 0, 0, w.now())
}

func (w *Worker) deactivateChannel(ctx context.Context, ch model.Channel, cause error) error {
	return w.channels.Deactivate(ctx, ch.ID, cause.Error())
}
