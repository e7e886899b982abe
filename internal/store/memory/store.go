// Package memory provides an in-memory store.Store for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/model"
	"jobscrape/internal/store"
)

// Store is an in-memory store.Store implementation.
type Store struct {
	mu          sync.Mutex
	companies   map[int]model.Company
	companyByName map[string]int
	nextCompanyID int

	jobs map[uuid.UUID]model.Job
	runs map[uuid.UUID]model.ScrapeRun
	prefs model.Preferences
	hasPrefs bool
}

var _ store.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		companies:      make(map[int]model.Company),
		companyByName:  make(map[string]int),
		jobs:           make(map[uuid.UUID]model.Job),
		runs:           make(map[uuid.UUID]model.ScrapeRun),
	}
}

func normalize(name string) string {
	return model.NormalizeCompanyName(name)
}

func (s *Store) FindOrCreate(ctx context.Context, canonicalName string) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(canonicalName)
	if id, ok := s.companyByName[key]; ok {
		return s.companies[id], nil
	}
	s.nextCompanyID++
	c := model.Company{ID: s.nextCompanyID, CanonicalName: canonicalName}
	s.companies[c.ID] = c
	s.companyByName[key] = c.ID
	return c, nil
}

func (s *Store) GetCompany(ctx context.Context, id int) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return model.Company{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateJob(ctx context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) getJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, store.ErrNotFound
	}
	return j, nil
}

func (s *Store) UpdateJob(ctx context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return store.ErrNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) FindByContentHash(ctx context.Context, hash string, since time.Time) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Job
	for _, j := range s.jobs {
		if j.ContentHash == hash && !j.CreatedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *Store) ListBySourceMessageIDs(ctx context.Context, ids []uuid.UUID, since time.Time) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Job
	for _, j := range s.jobs {
		if want[j.SourceMessageID] && !j.CreatedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *Store) ListActiveDuplicateHashes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, j := range s.jobs {
		if j.IsActive {
			counts[j.ContentHash]++
		}
	}
	var out []string
	for hash, n := range counts {
		if n > 1 {
			out = append(out, hash)
		}
	}
	return out, nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getJob(ctx, id)
}

func (s *Store) CreateRun(ctx context.Context, run model.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, run model.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return store.ErrNotFound
	}
	s.runs[run.ID] = run
	return nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (model.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return model.ScrapeRun{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListRunning(ctx context.Context) ([]model.ScrapeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScrapeRun
	for _, r := range s.runs {
		if r.Status == model.ScrapeRunRunning {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetPreferences(ctx context.Context) (model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *Store) PutPreferences(ctx context.Context, prefs model.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	s.hasPrefs = true
	return nil
}
