// Package memory provides an in-memory rawstore.Store for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"jobscrape/internal/model"
	"jobscrape/internal/rawstore"
)

// Store is an in-memory rawstore.Store implementation.
type Store struct {
	mu   sync.Mutex
	docs map[uuid.UUID]model.RawMessage
	keys map[string]uuid.UUID // compound key -> doc id
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		docs: make(map[uuid.UUID]model.RawMessage),
		keys: make(map[string]uuid.UUID),
	}
}

// Upsert implements rawstore.Store.
func (s *Store) Upsert(ctx context.Context, msg model.RawMessage) (model.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := msg.Key()
	if id, ok := s.keys[key]; ok {
		existing := s.docs[id]
		msg.ID = existing.ID
		msg.Processed = existing.Processed
		msg.ProcessingOutcome = existing.ProcessingOutcome
		msg.JobID = existing.JobID
		s.docs[id] = msg
		return msg, nil
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.Must(uuid.NewV7())
	}
	s.docs[msg.ID] = msg
	s.keys[key] = msg.ID
	return msg, nil
}

// Get implements rawstore.Store.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[id]
	if !ok {
		return model.RawMessage{}, rawstore.ErrNotFound
	}
	return m, nil
}

// ListUnprocessed implements rawstore.Store.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]model.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.RawMessage
	for _, m := range s.docs {
		if !m.Processed {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessed implements rawstore.Store.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, outcome model.ProcessingOutcome, jobID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[id]
	if !ok {
		return rawstore.ErrNotFound
	}
	m.Processed = true
	m.ProcessingOutcome = outcome
	m.JobID = jobID
	s.docs[id] = m
	return nil
}

// ListByChannel implements rawstore.Store.
func (s *Store) ListByChannel(ctx context.Context, channelHandle string) ([]model.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RawMessage
	for _, m := range s.docs {
		if m.ChannelHandle == channelHandle {
			out = append(out, m)
		}
	}
	return out, nil
}

// CountProcessedWithoutOutcome implements rawstore.Store.
func (s *Store) CountProcessedWithoutOutcome(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.docs {
		if m.Processed && m.ProcessingOutcome == model.OutcomeNone {
			n++
		}
	}
	return n, nil
}

// ResetStuck implements rawstore.Store.
func (s *Store) ResetStuck(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.docs {
		if m.Processed && m.ProcessingOutcome == model.OutcomeNone {
			m.Processed = false
			m.JobID = nil
			s.docs[id] = m
			n++
		}
	}
	return n, nil
}
