// Package session defines the contract for persisting and loading per-account
// platform session blobs (opaque authentication state platform.Client
// factories need to resume a session without re-authenticating).
package session

import "context"

// Store loads and persists opaque session blobs keyed by account ID.
type Store interface {
	// Load returns the stored blob for accountID, or (nil, nil) if none
	// exists yet.
	Load(ctx context.Context, accountID int) ([]byte, error)

	// Save persists data as the session blob for accountID, replacing any
	// existing blob.
	Save(ctx context.Context, accountID int, data []byte) error
}
