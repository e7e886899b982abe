// Package channel implements the Channel Registry: the ordered list of
// channels due for scraping, monotonic last-seen-message tracking, and
// account assignment with probation handling when an assigned account is
// banned.
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobscrape/internal/model"
)

// ErrStaleSeenID is returned by MarkScraped when the candidate last-seen
// message ID does not advance the channel's current watermark. Platform
// fetches are expected to return messages in ascending ID order; a caller
// seeing a stale ID usually means a retried or out-of-order batch.
var ErrStaleSeenID = errors.New("channel: candidate last-seen id does not advance watermark")

// ErrNotFound is returned by Store.Get/GetByHandle when no row matches.
var ErrNotFound = errors.New("channel: not found")

// Store persists Channel rows.
type Store interface {
	// ActiveChannels returns channels with Status == active or probation,
	// ordered by HealthScore descending, then LastScrapedAt ascending so the
	// registry favors healthy channels but never starves a stale one.
	ActiveChannels(ctx context.Context) ([]model.Channel, error)

	Get(ctx context.Context, id int) (model.Channel, error)
	GetByHandle(ctx context.Context, handle string) (model.Channel, error)

	// Update persists a channel's mutable fields (status, health, account
	// assignment). The running-total counters are owned by IncrementCounters
	// and are never written back from an Update's row value.
	Update(ctx context.Context, ch model.Channel) error

	// CompareAndSwapLastSeen atomically updates LastSeenMessageID only if
	// candidate is greater than the stored value (or the stored value is
	// nil). It reports whether the swap happened.
	CompareAndSwapLastSeen(ctx context.Context, channelID int, candidate int64) (bool, error)

	// IncrementCounters adds the deltas to the channel's running totals as a
	// single additive update (SQL col = col + N), never read-modify-write,
	// so concurrent workers crediting the same channel can't lose counts.
	// A non-zero scrapedAt also advances LastScrapedAt.
	IncrementCounters(ctx context.Context, channelID int, messagesDelta, jobMessagesDelta, qualityJobsDelta int64, scrapedAt time.Time) error
}

// Registry is the read/write facade pipeline stages use to discover and
// update channels. It is a thin wrapper over Store; the logic it owns is the
// probation-on-banned-account invariant and the monotonicity guard.
type Registry struct {
	store Store
}

// New creates a Registry backed by store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// ActiveChannels returns the channels due for scraping, in registry order.
func (r *Registry) ActiveChannels(ctx context.Context) ([]model.Channel, error) {
	chans, err := r.store.ActiveChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("channel: list active: %w", err)
	}
	return chans, nil
}

// Resolve looks up a channel by its platform handle, the form in which
// RawMessage and other downstream records reference a channel.
func (r *Registry) Resolve(ctx context.Context, handle string) (model.Channel, error) {
	ch, err := r.store.GetByHandle(ctx, handle)
	if err != nil {
		return model.Channel{}, fmt.Errorf("channel: resolve %q: %w", handle, err)
	}
	return ch, nil
}

// MarkScraped records the outcome of a scrape pass over a channel: the new
// high-water message ID (if any messages were fetched), and delta counters
// to add to the channel's running totals.
func (r *Registry) MarkScraped(ctx context.Context, channelID int, newLastSeenID *int64, messagesDelta, jobMessagesDelta, qualityJobsDelta int64, scrapedAt time.Time) error {
	if newLastSeenID != nil {
		swapped, err := r.store.CompareAndSwapLastSeen(ctx, channelID, *newLastSeenID)
		if err != nil {
			return fmt.Errorf("channel: cas last-seen %d: %w", channelID, err)
		}
		if !swapped {
			return fmt.Errorf("channel %d: %w", channelID, ErrStaleSeenID)
		}
	}

	if err := r.store.IncrementCounters(ctx, channelID, messagesDelta, jobMessagesDelta, qualityJobsDelta, scrapedAt); err != nil {
		return fmt.Errorf("channel: increment counters %d: %w", channelID, err)
	}
	return nil
}

// Deactivate marks a channel permanently unscrapable (e.g. the platform
// reports it private or its handle no longer resolves), recording reason for
// operator visibility.
func (r *Registry) Deactivate(ctx context.Context, channelID int, reason string) error {
	ch, err := r.store.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("channel: get %d: %w", channelID, err)
	}
	ch.Status = model.ChannelDeactivated
	ch.DeactivationReason = reason
	if err := r.store.Update(ctx, ch); err != nil {
		return fmt.Errorf("channel: deactivate %d: %w", channelID, err)
	}
	return nil
}

// ResetLowHealthStreak zeroes a channel's consecutive-low-health-window
// counter and, if the channel had been deactivated for low yield, restores
// it to probation so the next Channel Scorer sweep gives it a fresh
// evaluation window. Exposed as the score-channels CLI command's --reset
// flag.
func (r *Registry) ResetLowHealthStreak(ctx context.Context, channelID int) error {
	ch, err := r.store.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("channel: get %d: %w", channelID, err)
	}
	ch.ConsecutiveLowHealthWindows = 0
	if ch.Status == model.ChannelDeactivated && ch.DeactivationReason == "low yield" {
		ch.Status = model.ChannelProbation
	}
	if err := r.store.Update(ctx, ch); err != nil {
		return fmt.Errorf("channel: reset streak %d: %w", channelID, err)
	}
	return nil
}

// AssignAccount assigns accountID to a channel. If the channel was
// previously assigned to a different, now-banned account, the channel is put
// on probation rather than immediately deactivated, since reassignment to a
// healthy account is often sufficient to recover it.
func (r *Registry) AssignAccount(ctx context.Context, channelID, accountID int, assignedAccountWasBanned bool) error {
	ch, err := r.store.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("channel: get %d: %w", channelID, err)
	}
	ch.AssignedAccountID = &accountID
	if assignedAccountWasBanned && ch.Status == model.ChannelActive {
		ch.Status = model.ChannelProbation
	}
	if err := r.store.Update(ctx, ch); err != nil {
		return fmt.Errorf("channel: update %d: %w", channelID, err)
	}
	return nil
}
