package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobscrape/internal/account/memory"
	"jobscrape/internal/model"
)

func newTestPool(t *testing.T) (*Pool, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	pool := New(store, time.Minute, 3, 5)
	return pool, store
}

func TestAcquire_NoAccounts(t *testing.T) {
	pool, _ := newTestPool(t)
	_, err := pool.Acquire(context.Background())
	if err != ErrNoAccountAvailable {
		t.Fatalf("expected ErrNoAccountAvailable, got %v", err)
	}
}

func TestAcquire_SkipsBannedAndInactive(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: false, Health: model.AccountHealthy})
	store.Seed(model.Account{ID: 2, IsActive: true, IsBanned: true, Health: model.AccountBanned})
	store.Seed(model.Account{ID: 3, IsActive: true, Health: model.AccountHealthy})

	lease, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if lease.Account.ID != 3 {
		t.Fatalf("expected account 3, got %d", lease.Account.ID)
	}
}

func TestAcquire_ConcurrentLeaseExcludesOthers(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})

	l1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := pool.Acquire(context.Background()); err != ErrNoAccountAvailable {
		t.Fatalf("expected no account available while leased, got %v", err)
	}
	if err := pool.Release(context.Background(), l1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestAcquireByID_BannedAccountFails(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: false, IsBanned: true, Health: model.AccountBanned})

	_, err := pool.AcquireByID(context.Background(), 1)
	if !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestAcquireByID_HeldLeaseFails(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})

	l1, err := pool.AcquireByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("first AcquireByID: %v", err)
	}
	if _, err := pool.AcquireByID(context.Background(), 1); !errors.Is(err, ErrAccountLeased) {
		t.Fatalf("expected ErrAccountLeased, got %v", err)
	}
	if err := pool.Release(context.Background(), l1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := pool.AcquireByID(context.Background(), 1); err != nil {
		t.Fatalf("AcquireByID after release: %v", err)
	}
}

func TestReportSuccess_ResetsDegradedHealth(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: true, Health: model.AccountDegraded, ConsecutiveErrors: 3})

	lease, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := pool.ReportSuccess(context.Background(), lease); err != nil {
		t.Fatalf("ReportSuccess: %v", err)
	}

	acc, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.Health != model.AccountHealthy {
		t.Errorf("expected healthy, got %s", acc.Health)
	}
	if acc.ConsecutiveErrors != 0 {
		t.Errorf("expected 0 consecutive errors, got %d", acc.ConsecutiveErrors)
	}
}

func TestReportError_DegradesAfterThreshold(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})

	for i := 0; i < 3; i++ {
		lease, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire iteration %d: %v", i, err)
		}
		if err := pool.ReportError(context.Background(), lease, SoftError); err != nil {
			t.Fatalf("ReportError iteration %d: %v", i, err)
		}
	}

	acc, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.Health != model.AccountDegraded {
		t.Errorf("expected degraded after 3 consecutive errors, got %s", acc.Health)
	}
}

func TestReportError_HardBanIsTerminal(t *testing.T) {
	pool, store := newTestPool(t)
	store.Seed(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})

	lease, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := pool.ReportError(context.Background(), lease, HardBan); err != nil {
		t.Fatalf("ReportError: %v", err)
	}

	acc, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.Health != model.AccountBanned || !acc.IsBanned || acc.IsActive {
		t.Errorf("expected banned/inactive account, got %+v", acc)
	}

	if _, err := pool.Acquire(context.Background()); err != ErrNoAccountAvailable {
		t.Errorf("expected banned account to be unavailable, got %v", err)
	}
}

func TestCanJoinToday_ResetsOnNewDay(t *testing.T) {
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore().WithClock(func() time.Time { return clock })
	pool := New(store, time.Minute, 3, 2, WithClock(func() time.Time { return clock }))

	store.Seed(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})

	lease, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := pool.CanJoinToday(context.Background(), lease, time.UTC)
		if err != nil {
			t.Fatalf("CanJoinToday: %v", err)
		}
		if !ok {
			t.Fatalf("expected join allowed at count %d", i)
		}
		if err := pool.RecordJoin(context.Background(), lease, time.UTC); err != nil {
			t.Fatalf("RecordJoin: %v", err)
		}
	}

	ok, err := pool.CanJoinToday(context.Background(), lease, time.UTC)
	if err != nil {
		t.Fatalf("CanJoinToday: %v", err)
	}
	if ok {
		t.Fatal("expected join budget exhausted")
	}

	clock = clock.Add(24 * time.Hour)
	ok, err = pool.CanJoinToday(context.Background(), lease, time.UTC)
	if err != nil {
		t.Fatalf("CanJoinToday after rollover: %v", err)
	}
	if !ok {
		t.Fatal("expected join budget reset on new day")
	}
}
