// Package govern implements the Rate-Limit Governor: a per-account,
// cross-process pacing gate in front of every platform operation. It
// enforces a floor inter-operation delay, honors platform-reported
// flood-wait signals up to a configured ceiling, and classifies anything
// past the ceiling as a rate-limited failure the caller should surface
// rather than block on.
package govern

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimitExceeded is returned by ReportFloodWait when the platform's
// requested wait exceeds the configured ceiling. Callers should treat this
// as a failed operation (reschedule the channel for a later run) rather than
// block the worker for the full duration.
var ErrRateLimitExceeded = errors.New("govern: flood wait exceeds ceiling")

// nextAllowedScript atomically reads an account's next-allowed timestamp
// (milliseconds since epoch; the floor delay defaults to 500ms, so second
// granularity would round it away), and if the caller may proceed now,
// advances it by floor milliseconds. It returns how many milliseconds the
// caller must still wait (0 if allowed).
//
// It keeps a single next-allowed watermark rather than a refillable token
// bucket, since the governor only needs a floor delay.
const nextAllowedScript = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local floor_ms = tonumber(ARGV[2])

local next_allowed = tonumber(redis.call("GET", key))
if next_allowed == nil then
  next_allowed = 0
end

if now_ms >= next_allowed then
  redis.call("SET", key, now_ms + floor_ms, "PX", 120000)
  return 0
else
  return next_allowed - now_ms
end
`

// setNextAllowedScript unconditionally pushes an account's next-allowed
// timestamp forward, used when the platform reports a flood wait.
const setNextAllowedScript = `
local key = KEYS[1]
local next_allowed = tonumber(ARGV[1])
redis.call("SET", key, next_allowed, "PX", ARGV[2])
return 1
`

// Governor paces operations against a single account across every worker
// process sharing the same Redis instance.
type Governor struct {
	redis        *redis.Client
	floor        time.Duration
	ceiling      time.Duration
	waitScript   *redis.Script
	setScript    *redis.Script
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates a Governor with the given floor inter-operation delay and
// flood-wait ceiling.
func New(rdb *redis.Client, floor, ceiling time.Duration) *Governor {
	return &Governor{
		redis:      rdb,
		floor:      floor,
		ceiling:    ceiling,
		waitScript: redis.NewScript(nextAllowedScript),
		setScript:  redis.NewScript(setNextAllowedScript),
		now:        time.Now,
		sleep:      ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func redisKey(accountID int) string {
	return fmt.Sprintf("govern:next_allowed:%d", accountID)
}

// Wait blocks until accountID's floor inter-operation delay has elapsed,
// advancing its watermark for the next caller before returning. It honors
// ctx cancellation while waiting.
func (g *Governor) Wait(ctx context.Context, accountID int) error {
	for {
		nowMillis := g.now().UnixMilli()
		res, err := g.waitScript.Run(ctx, g.redis, []string{redisKey(accountID)}, nowMillis, g.floor.Milliseconds()).Result()
		if err != nil {
			return fmt.Errorf("govern: evaluate wait for account %d: %w", accountID, err)
		}
		waitMillis, ok := res.(int64)
		if !ok {
			return fmt.Errorf("govern: unexpected script result type %T", res)
		}
		if waitMillis <= 0 {
			return nil
		}
		if err := g.sleep(ctx, time.Duration(waitMillis)*time.Millisecond); err != nil {
			return err
		}
	}
}

// ReportFloodWait records a platform-reported flood wait for accountID. If
// waitFor exceeds the governor's ceiling, it sets the watermark to the
// ceiling (so the account isn't pinned indefinitely) and returns
// ErrRateLimitExceeded so the caller can classify the operation as failed
// rather than block for the full duration.
func (g *Governor) ReportFloodWait(ctx context.Context, accountID int, waitFor time.Duration) error {
	effective := waitFor
	exceeded := waitFor > g.ceiling
	if exceeded {
		effective = g.ceiling
	}

	nextAllowed := g.now().Add(effective).UnixMilli()
	ttl := effective.Milliseconds() + 60_000
	if _, err := g.setScript.Run(ctx, g.redis, []string{redisKey(accountID)}, nextAllowed, ttl).Result(); err != nil {
		return fmt.Errorf("govern: record flood wait for account %d: %w", accountID, err)
	}

	if exceeded {
		return fmt.Errorf("govern: account %d flood wait %s: %w", accountID, waitFor, ErrRateLimitExceeded)
	}
	return nil
}
