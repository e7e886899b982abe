// Package rawstore defines the document-store contract for RawMessage rows:
// platform messages persisted verbatim ahead of classification. Concrete
// backends live in subpackages (elastic for production, memory for tests).
package rawstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"jobscrape/internal/model"
)

// ErrNotFound is returned by Get when no document matches.
var ErrNotFound = errors.New("rawstore: not found")

// Store persists and queries RawMessage documents. The compound key is
// (PlatformMessageID, ChannelHandle); Upsert is idempotent on that key so
// the Scraper Worker can retry a batch without creating duplicates.
type Store interface {
	// Upsert inserts msg, or replaces an existing document with the same
	// compound key. The stored ID is preserved across an upsert that hits
	// an existing document, so downstream references (Job.SourceMessageID)
	// remain stable.
	Upsert(ctx context.Context, msg model.RawMessage) (model.RawMessage, error)

	Get(ctx context.Context, id uuid.UUID) (model.RawMessage, error)

	// ListUnprocessed returns up to limit documents with Processed == false,
	// oldest FetchedAt first, the Classifier/Extractor/Persister pipeline's
	// work queue.
	ListUnprocessed(ctx context.Context, limit int) ([]model.RawMessage, error)

	// MarkProcessed flips Processed to true and records outcome and the
	// resulting job id (nil for not_a_job outcomes; for duplicates, the id of
	// the Job the message collapsed into). The Persister calls it after its
	// Job write; the two writes do not share a transaction.
	MarkProcessed(ctx context.Context, id uuid.UUID, outcome model.ProcessingOutcome, jobID *uuid.UUID) error

	// ListByChannel returns every message ever fetched from channelHandle
	// (the elastic backend returns at most 10,000 of them), used by the Channel Scorer to resolve a channel's jobs via
	// store.JobStore.ListBySourceMessageIDs.
	ListByChannel(ctx context.Context, channelHandle string) ([]model.RawMessage, error)

	// CountProcessedWithoutOutcome counts documents with Processed == true
	// but ProcessingOutcome == OutcomeNone, a consistency check the verify
	// CLI command surfaces.
	CountProcessedWithoutOutcome(ctx context.Context) (int, error)

	// ResetStuck flips every document counted by CountProcessedWithoutOutcome
	// back to Processed == false (the elastic backend resets at most 10,000
	// per call), so the next process run retries them.
	// Exposed as the process CLI command's --reset flag.
	ResetStuck(ctx context.Context) (int, error)
}
