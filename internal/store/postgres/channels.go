package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"jobscrape/internal/channel"
	"jobscrape/internal/model"
)

var _ channel.Store = (*ChannelStore)(nil)

// ChannelStore is a channel.Store implementation backed by Postgres. It is
// kept separate from Store (companies/jobs/scrape_runs/preferences) since
// the Channel Registry only ever needs this narrower surface.
type ChannelStore struct {
	pool Pool
}

// NewChannelStore wraps an existing pool.
func NewChannelStore(pool Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

const channelColumns = `id, handle, title, category, is_member, assigned_account_id,
	last_seen_message_id, last_scraped_at, messages_scraped, job_messages_found,
	quality_jobs_found, health_score, status, deactivation_reason,
	consecutive_low_health_windows`

// ActiveChannels implements channel.Store.
func (s *ChannelStore) ActiveChannels(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+channelColumns+` FROM channels
		WHERE status IN ('active', 'probation')
		ORDER BY health_score DESC, last_scraped_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list active channels: %w", err)
	}
	defer rows.Close()

	var out []model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: scan channel row: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: iterate channel rows: %w", err)
	}
	return out, nil
}

// Get implements channel.Store.
func (s *ChannelStore) Get(ctx context.Context, id int) (model.Channel, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	ch, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Channel{}, fmt.Errorf("store/postgres: channel %d: %w", id, channel.ErrNotFound)
	}
	if err != nil {
		return model.Channel{}, fmt.Errorf("store/postgres: get channel %d: %w", id, err)
	}
	return ch, nil
}

// GetByHandle implements channel.Store. Handles are unique
// case-insensitively, so the lookup folds both sides.
func (s *ChannelStore) GetByHandle(ctx context.Context, handle string) (model.Channel, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE LOWER(handle) = LOWER($1)`, handle)
	ch, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Channel{}, fmt.Errorf("store/postgres: channel %q: %w", handle, channel.ErrNotFound)
	}
	if err != nil {
		return model.Channel{}, fmt.Errorf("store/postgres: get channel %q: %w", handle, err)
	}
	return ch, nil
}

// Update implements channel.Store. The counter columns are deliberately
// absent: they only ever move through IncrementCounters' additive update, so
// a stale row value here can't undo credits applied since the caller's read.
func (s *ChannelStore) Update(ctx context.Context, ch model.Channel) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE channels SET
			title = $2, category = $3, is_member = $4, assigned_account_id = $5,
			health_score = $6, status = $7, deactivation_reason = $8,
			consecutive_low_health_windows = $9
		WHERE id = $1`,
		ch.ID, ch.Title, ch.Category, ch.IsMember, ch.AssignedAccountID,
		ch.HealthScore, string(ch.Status),
		ch.DeactivationReason, ch.ConsecutiveLowHealthWindows,
	)
	if err != nil {
		return fmt.Errorf("store/postgres: update channel %d: %w", ch.ID, err)
	}
	return nil
}

// IncrementCounters implements channel.Store. The additive SET keeps
// concurrent workers' credits from losing counts to read-modify-write races.
func (s *ChannelStore) IncrementCounters(ctx context.Context, channelID int, messagesDelta, jobMessagesDelta, qualityJobsDelta int64, scrapedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE channels SET
			messages_scraped = messages_scraped + $2,
			job_messages_found = job_messages_found + $3,
			quality_jobs_found = quality_jobs_found + $4,
			last_scraped_at = COALESCE($5, last_scraped_at)
		WHERE id = $1`,
		channelID, messagesDelta, jobMessagesDelta, qualityJobsDelta, nullableTime(scrapedAt))
	if err != nil {
		return fmt.Errorf("store/postgres: increment counters channel %d: %w", channelID, err)
	}
	return nil
}

// CompareAndSwapLastSeen implements channel.Store. The WHERE clause performs
// the compare; a zero rows-affected result means another writer already
// advanced the watermark past candidate.
func (s *ChannelStore) CompareAndSwapLastSeen(ctx context.Context, channelID int, candidate int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE channels SET last_seen_message_id = $2
		WHERE id = $1 AND (last_seen_message_id IS NULL OR last_seen_message_id < $2)`,
		channelID, candidate)
	if err != nil {
		return false, fmt.Errorf("store/postgres: cas last-seen channel %d: %w", channelID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanChannel(row pgx.Row) (model.Channel, error) {
	var ch model.Channel
	var status string
	var lastScraped *time.Time
	if err := row.Scan(
		&ch.ID, &ch.Handle, &ch.Title, &ch.Category, &ch.IsMember, &ch.AssignedAccountID,
		&ch.LastSeenMessageID, &lastScraped, &ch.MessagesScraped, &ch.JobMessagesFound,
		&ch.QualityJobsFound, &ch.HealthScore, &status, &ch.DeactivationReason,
		&ch.ConsecutiveLowHealthWindows,
	); err != nil {
		return model.Channel{}, err
	}
	ch.Status = model.ChannelStatus(status)
	if lastScraped != nil {
		ch.LastScrapedAt = *lastScraped
	}
	return ch, nil
}
