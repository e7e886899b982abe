// Package platform defines the messaging-platform client contract the
// Scraper Worker depends on: fetching channel messages and joining
// channels. Concrete transports (e.g. package telegram) implement Client;
// everything above this package is platform-agnostic.
package platform

import (
	"context"
	"fmt"
	"time"
)

// Message is a single platform message as returned by Fetch, before any
// domain processing.
type Message struct {
	ID         int64
	SenderID   int64
	Body       string
	AuthoredAt time.Time
}

// FloodWaitError is returned by Client methods when the platform asks the
// caller to back off for a specific duration before retrying. Callers
// should route this through govern.Governor.ReportFloodWait rather than
// sleeping directly, so the wait is visible to every process sharing the
// account.
type FloodWaitError struct {
	Wait time.Duration
}

func (e FloodWaitError) Error() string {
	return fmt.Sprintf("platform: flood wait %s", e.Wait)
}

// ErrChannelPrivate indicates the channel is not publicly joinable/readable
// with the current account.
var ErrChannelPrivate = fmtErr("platform: channel is private")

// ErrUsernameInvalid indicates the channel handle doesn't resolve to any
// channel on the platform.
var ErrUsernameInvalid = fmtErr("platform: channel handle invalid")

// ErrAuthKeyInvalid indicates the account's session is no longer valid and
// requires re-authentication. The Scraper Worker treats this as a hard ban
// signal against the account.
var ErrAuthKeyInvalid = fmtErr("platform: auth key invalid")

func fmtErr(s string) error { return simpleError(s) }

type simpleError string

func (e simpleError) Error() string { return string(e) }

// Client fetches messages from channels on behalf of a single account.
// Implementations are not required to be safe for concurrent use by
// multiple goroutines against the same account, since the Account Pool
// guarantees exclusive access per lease.
type Client interface {
	// Fetch retrieves up to limit messages from channel with ID greater
	// than minID, newest first. A nil minID means no lower bound: the most
	// recent limit messages, subject to the platform's own history limits.
	Fetch(ctx context.Context, channelHandle string, minID *int64, limit int) ([]Message, error)

	// Join joins the account to channel, required before Fetch can succeed
	// on a channel the account hasn't seen before.
	Join(ctx context.Context, channelHandle string) error

	// Close releases any resources (connections, session writers) held by
	// the client.
	Close() error
}

// ClientFactory constructs a Client bound to a single account's session.
// Concrete platform packages provide one of these for wiring into the
// Scraper Worker.
type ClientFactory func(ctx context.Context, accountID int, sessionData []byte) (Client, error)
