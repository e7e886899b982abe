// Package account implements the Account Pool: leasing platform accounts out
// to scraper workers, tracking per-account health, and enforcing the daily
// join cap used when a worker needs to join a channel before scraping it.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobscrape/internal/model"
	"jobscrape/internal/telemetry"
)

// ErrNoAccountAvailable is returned by Acquire when every account is leased,
// banned, or inactive. The daily join budget is not considered here; see
// CanJoinToday.
var ErrNoAccountAvailable = errors.New("account: no account available")

// ErrLeaseNotHeld is returned by Release/ReportSuccess/ReportError when the
// caller's lease token doesn't match the current holder (e.g. it expired).
var ErrLeaseNotHeld = errors.New("account: lease not held")

// ErrAccountBanned is returned by AcquireByID when the named account is
// banned or deactivated. Callers holding a channel assigned to the account
// should reassign it rather than retry.
var ErrAccountBanned = errors.New("account: account banned or inactive")

// ErrAccountLeased is returned by AcquireByID when another worker currently
// holds the named account's lease.
var ErrAccountLeased = errors.New("account: account already leased")

// Store persists Account rows and brokers exclusive leases across processes.
// A Postgres-backed implementation owns the account table; lease state lives
// in Redis so any worker process in the fleet can observe and expire it.
type Store interface {
	// ListAvailable returns accounts eligible for leasing: active, not banned,
	// ordered by LastUsedAt ascending so load is spread evenly.
	ListAvailable(ctx context.Context) ([]model.Account, error)

	// TryLease attempts to atomically acquire the named account's lease for
	// ttl. It returns false if another holder already has it.
	TryLease(ctx context.Context, accountID int, ttl time.Duration) (token string, ok bool, err error)

	// RenewLease extends an existing lease if token still matches the holder.
	RenewLease(ctx context.Context, accountID int, token string, ttl time.Duration) error

	// ReleaseLease drops a lease early if token still matches the holder.
	ReleaseLease(ctx context.Context, accountID int, token string) error

	// Get returns the current row for an account.
	Get(ctx context.Context, accountID int) (model.Account, error)

	// Update persists mutated account fields (health, error counters, join
	// counters, timestamps).
	Update(ctx context.Context, acc model.Account) error
}

// Pool coordinates leasing and health tracking for the configured account
// set. It holds no account rows itself; everything durable goes through
// Store so multiple worker processes share one view of account state.
type Pool struct {
	store              Store
	leaseTTL           time.Duration
	degradeAfterErrors int
	maxJoinsPerDay      int
	metrics            *telemetry.Metrics
	now                func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the pool's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithMetrics records account health transitions to m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// New creates a Pool backed by store.
func New(store Store, leaseTTL time.Duration, degradeAfterErrors, maxJoinsPerDay int, opts ...Option) *Pool {
	p := &Pool{
		store:              store,
		leaseTTL:           leaseTTL,
		degradeAfterErrors: degradeAfterErrors,
		maxJoinsPerDay:      maxJoinsPerDay,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lease is a held account lease. Callers must call Release (directly, or via
// ReportSuccess/ReportError which release implicitly) when done.
type Lease struct {
	Account model.Account
	token   string
}

// Acquire leases the least-recently-used eligible account. It tries
// candidates in order until one's lease succeeds, since a concurrent worker
// may win the race for the first candidate.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	candidates, err := p.store.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("account: list available: %w", err)
	}
	for _, acc := range candidates {
		token, ok, err := p.store.TryLease(ctx, acc.ID, p.leaseTTL)
		if err != nil {
			return nil, fmt.Errorf("account: lease account %d: %w", acc.ID, err)
		}
		if !ok {
			continue
		}
		return &Lease{Account: acc, token: token}, nil
	}
	return nil, ErrNoAccountAvailable
}

// AcquireByID leases one specific account, the form the Scraper Worker uses
// for a channel's assigned account: lease or failure, never a silent
// substitute. It fails with ErrAccountBanned when the account can no longer
// be driven at all and ErrAccountLeased when another worker holds it.
func (p *Pool) AcquireByID(ctx context.Context, accountID int) (*Lease, error) {
	acc, err := p.store.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("account: get account %d: %w", accountID, err)
	}
	if !acc.IsActive || acc.IsBanned || acc.Health == model.AccountBanned {
		return nil, fmt.Errorf("account %d: %w", accountID, ErrAccountBanned)
	}
	token, ok, err := p.store.TryLease(ctx, accountID, p.leaseTTL)
	if err != nil {
		return nil, fmt.Errorf("account: lease account %d: %w", accountID, err)
	}
	if !ok {
		return nil, fmt.Errorf("account %d: %w", accountID, ErrAccountLeased)
	}
	return &Lease{Account: acc, token: token}, nil
}

// Release gives up a lease early without recording success or failure.
func (p *Pool) Release(ctx context.Context, l *Lease) error {
	if err := p.store.ReleaseLease(ctx, l.Account.ID, l.token); err != nil {
		return fmt.Errorf("account: release lease: %w", err)
	}
	return nil
}

// ReportSuccess records a successful operation on the leased account: resets
// the consecutive-error counter, restores healthy status if it had degraded,
// and releases the lease.
func (p *Pool) ReportSuccess(ctx context.Context, l *Lease) error {
	acc, err := p.store.Get(ctx, l.Account.ID)
	if err != nil {
		return fmt.Errorf("account: get account %d: %w", l.Account.ID, err)
	}
	acc.ConsecutiveErrors = 0
	if acc.Health == model.AccountDegraded {
		acc.Health = model.AccountHealthy
	}
	acc.LastUsedAt = p.now()
	if err := p.store.Update(ctx, acc); err != nil {
		return fmt.Errorf("account: update account %d: %w", acc.ID, err)
	}
	p.recordHealth(acc)
	return p.Release(ctx, l)
}

// BanSignal distinguishes the kind of failure ReportError observed, since a
// hard ban transitions the account immediately while a soft error only
// accumulates toward the degrade threshold.
type BanSignal bool

const (
	// SoftError is a transient failure (timeout, flood wait, transport
	// error) that counts toward the degrade threshold.
	SoftError BanSignal = false
	// HardBan is a platform signal that the account itself has been banned
	// (e.g. auth key revoked). It transitions the account to Banned
	// immediately regardless of ConsecutiveErrors.
	HardBan BanSignal = true
)

// ReportError records a failed operation. HardBan transitions the account to
// Banned terminally; SoftError increments the consecutive-error counter and
// degrades the account once it crosses the configured threshold.
func (p *Pool) ReportError(ctx context.Context, l *Lease, signal BanSignal) error {
	acc, err := p.store.Get(ctx, l.Account.ID)
	if err != nil {
		return fmt.Errorf("account: get account %d: %w", l.Account.ID, err)
	}
	if signal == HardBan {
		acc.Health = model.AccountBanned
		acc.IsBanned = true
		acc.IsActive = false
		if p.metrics != nil {
			p.metrics.AccountBanned()
		}
	} else {
		acc.ConsecutiveErrors++
		if acc.ConsecutiveErrors >= p.degradeAfterErrors && acc.Health == model.AccountHealthy {
			acc.Health = model.AccountDegraded
		}
	}
	acc.LastUsedAt = p.now()
	if err := p.store.Update(ctx, acc); err != nil {
		return fmt.Errorf("account: update account %d: %w", acc.ID, err)
	}
	p.recordHealth(acc)
	return p.Release(ctx, l)
}

// recordHealth mirrors an account's health state into the metrics gauge.
func (p *Pool) recordHealth(acc model.Account) {
	if p.metrics == nil {
		return
	}
	var state float64
	switch acc.Health {
	case model.AccountDegraded:
		state = 1
	case model.AccountBanned:
		state = 2
	}
	p.metrics.SetAccountHealth(acc.ID, state)
}

// CanJoinToday reports whether the leased account has remaining budget to
// join a new channel today. A stored date that is not today in loc counts as
// an unused budget; the stored counter is not written here (RecordJoin rolls
// it over).
func (p *Pool) CanJoinToday(ctx context.Context, l *Lease, loc *time.Location) (bool, error) {
	acc, err := p.store.Get(ctx, l.Account.ID)
	if err != nil {
		return false, fmt.Errorf("account: get account %d: %w", l.Account.ID, err)
	}
	today := p.now().In(loc)
	if !sameDay(acc.DailyJoinsDate, today) {
		return true, nil
	}
	return acc.DailyJoins < p.maxJoinsPerDay, nil
}

// RecordJoin increments the leased account's daily join counter, rolling it
// over to 1 if the stored date is stale.
func (p *Pool) RecordJoin(ctx context.Context, l *Lease, loc *time.Location) error {
	acc, err := p.store.Get(ctx, l.Account.ID)
	if err != nil {
		return fmt.Errorf("account: get account %d: %w", l.Account.ID, err)
	}
	today := p.now().In(loc)
	if sameDay(acc.DailyJoinsDate, today) {
		acc.DailyJoins++
	} else {
		acc.DailyJoins = 1
		acc.DailyJoinsDate = today
	}
	if err := p.store.Update(ctx, acc); err != nil {
		return fmt.Errorf("account: update account %d: %w", acc.ID, err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
