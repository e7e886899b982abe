package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"jobscrape/internal/account"
	"jobscrape/internal/model"
	"jobscrape/internal/store"
)

var _ account.Store = (*AccountStore)(nil)

// tryLeaseScript atomically sets an account's lease key only if it is
// unheld, mirroring govern.Governor's next-allowed script: the row data
// lives in Postgres, but the lease itself must be visible to every worker
// process the instant it's acquired, which a Postgres row with optimistic
// locking cannot give us without a polling loop.
const tryLeaseScript = `
local key = KEYS[1]
local token = ARGV[1]
local ttl = tonumber(ARGV[2])
if redis.call("EXISTS", key) == 1 then
  return 0
end
redis.call("SET", key, token, "EX", ttl)
return 1
`

// renewOrReleaseScript only mutates the lease key if token still matches the
// current holder, so a caller whose lease already expired (and was
// reclaimed by someone else) can never stomp on the new holder.
const renewOrReleaseScript = `
local key = KEYS[1]
local token = ARGV[1]
local held = redis.call("GET", key)
if held ~= token then
  return 0
end
if ARGV[2] == "release" then
  redis.call("DEL", key)
else
  redis.call("EXPIRE", key, tonumber(ARGV[2]))
end
return 1
`

// AccountStore is an account.Store implementation: account rows persist in
// Postgres, lease coordination lives in Redis so any worker process in the
// fleet observes and can expire a lease.
type AccountStore struct {
	pool       Pool
	redis      *redis.Client
	tryLease   *redis.Script
	renewOrRel *redis.Script
	tokenSeq   func() string
}

// NewAccountStore wraps pool and rdb.
func NewAccountStore(pool Pool, rdb *redis.Client) *AccountStore {
	return &AccountStore{
		pool:       pool,
		redis:      rdb,
		tryLease:   redis.NewScript(tryLeaseScript),
		renewOrRel: redis.NewScript(renewOrReleaseScript),
		tokenSeq:   newLeaseToken,
	}
}

func newLeaseToken() string {
	return uuid.New().String()
}

func leaseKey(accountID int) string {
	return fmt.Sprintf("account:lease:%d", accountID)
}

const accountColumns = `id, api_id, api_hash, is_active, is_banned, health,
	consecutive_errors, last_used_at, last_join_at, daily_joins, daily_joins_date`

// ListAvailable implements account.Store. Lease exclusion happens in Redis,
// so this query only filters on the durable row fields; TryLease is the
// authority on whether a listed candidate is actually free right now.
func (s *AccountStore) ListAvailable(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE is_active AND NOT is_banned
		ORDER BY last_used_at ASC NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list available accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan account row: %w", err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate account rows: %w", err)
	}
	return out, nil
}

// TryLease implements account.Store.
func (s *AccountStore) TryLease(ctx context.Context, accountID int, ttl time.Duration) (string, bool, error) {
	token := s.tokenSeq()
	res, err := s.tryLease.Run(ctx, s.redis, []string{leaseKey(accountID)}, token, int64(ttl/time.Second)).Result()
	if err != nil {
		return "", false, fmt.Errorf("store/postgres: try-lease account %d: %w", accountID, err)
	}
	if res.(int64) == 0 {
		return "", false, nil
	}
	return token, true, nil
}

// RenewLease implements account.Store.
func (s *AccountStore) RenewLease(ctx context.Context, accountID int, token string, ttl time.Duration) error {
	res, err := s.renewOrRel.Run(ctx, s.redis, []string{leaseKey(accountID)}, token, int64(ttl/time.Second)).Result()
	if err != nil {
		return fmt.Errorf("store/postgres: renew lease account %d: %w", accountID, err)
	}
	if res.(int64) == 0 {
		return fmt.Errorf("store/postgres: renew lease account %d: %w", accountID, account.ErrLeaseNotHeld)
	}
	return nil
}

// ReleaseLease implements account.Store.
func (s *AccountStore) ReleaseLease(ctx context.Context, accountID int, token string) error {
	res, err := s.renewOrRel.Run(ctx, s.redis, []string{leaseKey(accountID)}, token, "release").Result()
	if err != nil {
		return fmt.Errorf("store/postgres: release lease account %d: %w", accountID, err)
	}
	if res.(int64) == 0 {
		return fmt.Errorf("store/postgres: release lease account %d: %w", accountID, account.ErrLeaseNotHeld)
	}
	return nil
}

// Get implements account.Store.
func (s *AccountStore) Get(ctx context.Context, accountID int) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, fmt.Errorf("store/postgres: account %d: %w", accountID, store.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("store/postgres: get account %d: %w", accountID, err)
	}
	return acc, nil
}

// Update implements account.Store.
func (s *AccountStore) Update(ctx context.Context, acc model.Account) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE accounts SET
			is_active = $2, is_banned = $3, health = $4, consecutive_errors = $5,
			last_used_at = $6, last_join_at = $7, daily_joins = $8, daily_joins_date = $9
		WHERE id = $1`,
		acc.ID, acc.IsActive, acc.IsBanned, string(acc.Health), acc.ConsecutiveErrors,
		nullableTime(acc.LastUsedAt), nullableTime(acc.LastJoinAt), acc.DailyJoins,
		nullableTime(acc.DailyJoinsDate),
	)
	if err != nil {
		return fmt.Errorf("store/postgres: update account %d: %w", acc.ID, err)
	}
	return nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var acc model.Account
	var health string
	var lastUsed, lastJoin, dailyJoinsDate *time.Time
	if err := row.Scan(
		&acc.ID, &acc.APIID, &acc.APIHash, &acc.IsActive, &acc.IsBanned, &health,
		&acc.ConsecutiveErrors, &lastUsed, &lastJoin, &acc.DailyJoins, &dailyJoinsDate,
	); err != nil {
		return model.Account{}, err
	}
	acc.Health = model.AccountHealth(health)
	if lastUsed != nil {
		acc.LastUsedAt = *lastUsed
	}
	if lastJoin != nil {
		acc.LastJoinAt = *lastJoin
	}
	if dailyJoinsDate != nil {
		acc.DailyJoinsDate = *dailyJoinsDate
	}
	return acc, nil
}
