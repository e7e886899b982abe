// Package telegram implements platform.Client against the Telegram Bot API
// HTTP surface.
//
// There is no MTProto client library available to this module, so rather
// than hand-roll a binary protocol implementation this client speaks to a
// Bot API-compatible HTTP gateway (the same shape Telegram's own Bot API
// exposes, and what a self-hosted MTProto-to-HTTP bridge would front). That
// keeps the transport a plain JSON-over-HTTP client, consistent with how the
// rest of this codebase talks to external HTTP APIs, and keeps FloodWaitError
// semantics centered on the documented Bot API 429 retry_after contract.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"jobscrape/internal/logging"
	"jobscrape/internal/platform"
)

// Config configures a Client.
type Config struct {
	BaseURL           string // e.g. "https://api.telegram.org/bot<token>"
	APIID             string
	APIHash           string
	HTTPClient        *http.Client
	MaxElapsedTime    time.Duration
	InitialInterval   time.Duration
	MaxInterval       time.Duration
}

// Client is a platform.Client backed by an HTTP gateway to Telegram.
type Client struct {
	cfg       Config
	http      *http.Client
	accountID int
	logger    *slog.Logger
}

// New constructs a platform.ClientFactory bound to cfg and logger. The
// returned factory ignores sessionData beyond passing it through to the
// gateway's login call, since session persistence is the gateway's concern.
func New(cfg Config, logger *slog.Logger) platform.ClientFactory {
	logger = logging.Default(logger)
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return func(ctx context.Context, accountID int, sessionData []byte) (platform.Client, error) {
		c := &Client{cfg: cfg, http: cfg.HTTPClient, accountID: accountID, logger: logger.With(slog.Int("account_id", accountID))}
		if err := c.login(ctx, sessionData); err != nil {
			return nil, fmt.Errorf("telegram: login account %d: %w", accountID, err)
		}
		return c, nil
	}
}

func (c *Client) login(ctx context.Context, sessionData []byte) error {
	body := map[string]any{
		"api_id":   c.cfg.APIID,
		"api_hash": c.cfg.APIHash,
		"session":  sessionData,
	}
	_, err := c.call(ctx, "/login", body)
	return err
}

type apiMessage struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	Text       string `json:"text"`
	DateUnix   int64  `json:"date"`
}

type fetchResponse struct {
	Messages []apiMessage `json:"messages"`
}

// Fetch implements platform.Client.
func (c *Client) Fetch(ctx context.Context, channelHandle string, minID *int64, limit int) ([]platform.Message, error) {
	body := map[string]any{
		"channel": channelHandle,
		"limit":   limit,
	}
	if minID != nil {
		body["min_id"] = *minID
	}

	raw, err := c.call(ctx, "/history", body)
	if err != nil {
		return nil, err
	}

	var resp fetchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("telegram: decode history response: %w", err)
	}

	out := make([]platform.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, platform.Message{
			ID:         m.ID,
			SenderID:   m.SenderID,
			Body:       m.Text,
			AuthoredAt: time.Unix(m.DateUnix, 0).UTC(),
		})
	}
	return out, nil
}

// Join implements platform.Client.
func (c *Client) Join(ctx context.Context, channelHandle string) error {
	_, err := c.call(ctx, "/join", map[string]any{"channel": channelHandle})
	return err
}

// Close implements platform.Client.
func (c *Client) Close() error {
	return nil
}

type apiError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RetryAfter  int    `json:"retry_after"`
}

// call performs a single gateway request, retrying transient transport and
// 5xx failures with exponential backoff (at most 3 attempts in all, within
// MaxElapsedTime). Flood-wait (429) and permanent
// client errors (4xx other than 429) are surfaced to the caller immediately
// as typed errors rather than retried internally, since the Rate-Limit
// Governor is responsible for pacing and backing off flood waits across
// every worker sharing the account.
func (c *Client) call(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("telegram: encode request: %w", err)
	}

	expo := backoff.NewExponentialBackOff()
	if c.cfg.MaxElapsedTime > 0 {
		expo.MaxElapsedTime = c.cfg.MaxElapsedTime
	} else {
		expo.MaxElapsedTime = 30 * time.Second
	}
	if c.cfg.InitialInterval > 0 {
		expo.InitialInterval = c.cfg.InitialInterval
	}
	if c.cfg.MaxInterval > 0 {
		expo.MaxInterval = c.cfg.MaxInterval
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, 2), ctx)

	var result []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("telegram: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("telegram: request %s: %w", path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("telegram: read response %s: %w", path, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			result = respBody
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			var apiErr apiError
			_ = json.Unmarshal(respBody, &apiErr)
			wait := time.Duration(apiErr.RetryAfter) * time.Second
			if wait <= 0 {
				wait = 5 * time.Second
			}
			return backoff.Permanent(platform.FloodWaitError{Wait: wait})
		case resp.StatusCode == http.StatusForbidden:
			var apiErr apiError
			_ = json.Unmarshal(respBody, &apiErr)
			if apiErr.Code == "auth_key_invalid" {
				return backoff.Permanent(platform.ErrAuthKeyInvalid)
			}
			return backoff.Permanent(platform.ErrChannelPrivate)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(platform.ErrUsernameInvalid)
		case resp.StatusCode >= 500:
			return fmt.Errorf("telegram: gateway error %d on %s", resp.StatusCode, path)
		default:
			return backoff.Permanent(fmt.Errorf("telegram: unexpected status %d on %s", resp.StatusCode, path))
		}
	}

	if err := backoff.Retry(op, bo); err != nil {
		c.logger.Debug("gateway call failed", slog.String("path", path), slog.Any("error", err))
		return nil, err
	}
	return result, nil
}
