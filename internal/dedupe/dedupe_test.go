package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/model"
)

type fakeJobs struct {
	jobs []model.Job
}

func (f *fakeJobs) FindByContentHash(ctx context.Context, hash string, since time.Time) ([]model.Job, error) {
	var out []model.Job
	for _, j := range f.jobs {
		if j.ContentHash == hash && !j.CreatedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) UpdateJob(ctx context.Context, job model.Job) error {
	for i, j := range f.jobs {
		if j.ID == job.ID {
			f.jobs[i] = job
			return nil
		}
	}
	return nil
}

func TestContentHash_WhitespaceAndCaseInvariant(t *testing.T) {
	a := ContentHash("Backend  Engineer", "Acme Corp", "Bangalore", "https://acme.co/apply")
	b := ContentHash("backend engineer", "acme corp", "bangalore", "https://acme.co/apply")
	if a != b {
		t.Fatalf("content hash not case/whitespace invariant: %q vs %q", a, b)
	}
}

func TestContentHash_DifferentFieldsDifferentHash(t *testing.T) {
	a := ContentHash("Backend Engineer", "Acme", "Bangalore", "https://acme.co/apply")
	b := ContentHash("Frontend Engineer", "Acme", "Bangalore", "https://acme.co/apply")
	if a == b {
		t.Fatalf("expected different hashes for different titles")
	}
}

func TestResolve_NoExistingJobIsNotDuplicate(t *testing.T) {
	jobs := &fakeJobs{}
	d := New(Config{Jobs: jobs})

	cand := model.JobCandidate{Title: "Backend Engineer", CompanyRaw: "Acme", Location: model.Location{Raw: "Bangalore"}}
	result, err := d.Resolve(context.Background(), cand)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.IsDuplicate {
		t.Fatalf("expected not a duplicate on empty store")
	}
	if result.ContentHash == "" {
		t.Fatalf("expected a non-empty content hash")
	}
}

func TestResolve_WithinWindowCollapses(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	existingID := uuid.New()
	hash := ContentHash("Backend Engineer", "Acme", "Bangalore", "https://acme.co/apply")

	jobs := &fakeJobs{jobs: []model.Job{
		{
			ID:          existingID,
			ContentHash: hash,
			CreatedAt:   fixedNow.Add(-10 * time.Minute),
			LastSeenAt:  fixedNow.Add(-10 * time.Minute),
		},
	}}

	d := New(Config{Jobs: jobs, Now: func() time.Time { return fixedNow }})

	cand := model.JobCandidate{
		Title:      "Backend Engineer",
		CompanyRaw: "Acme",
		Location:   model.Location{Raw: "Bangalore"},
		Apply:      model.ApplyChannel{URL: "https://acme.co/apply"},
	}
	result, err := d.Resolve(context.Background(), cand)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !result.IsDuplicate {
		t.Fatalf("expected duplicate collapse within window")
	}
	if result.ExistingJobID != existingID.String() {
		t.Fatalf("ExistingJobID = %s, want %s", result.ExistingJobID, existingID)
	}
	if !jobs.jobs[0].LastSeenAt.Equal(fixedNow) {
		t.Fatalf("LastSeenAt not advanced: got %v, want %v", jobs.jobs[0].LastSeenAt, fixedNow)
	}
}

func TestResolve_OutsideWindowIsNotDuplicate(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hash := ContentHash("Backend Engineer", "Acme", "Bangalore", "https://acme.co/apply")

	jobs := &fakeJobs{jobs: []model.Job{
		{
			ID:          uuid.New(),
			ContentHash: hash,
			CreatedAt:   fixedNow.Add(-72 * time.Hour),
			LastSeenAt:  fixedNow.Add(-72 * time.Hour),
		},
	}}

	d := New(Config{Jobs: jobs, Now: func() time.Time { return fixedNow }, Window: DefaultWindow})

	cand := model.JobCandidate{
		Title:      "Backend Engineer",
		CompanyRaw: "Acme",
		Location:   model.Location{Raw: "Bangalore"},
		Apply:      model.ApplyChannel{URL: "https://acme.co/apply"},
	}
	result, err := d.Resolve(context.Background(), cand)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.IsDuplicate {
		t.Fatalf("expected no duplicate outside the dedup window")
	}
}

func TestMergeJob_FillsNullFieldsOnly(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	salary := 50000
	existing := model.Job{ID: uuid.New(), Skills: []string{"go"}}
	cand := model.JobCandidate{
		SalaryMonthlyINR: &salary,
		Skills:           []string{"python"},
		Apply:            model.ApplyChannel{URL: "https://acme.co/apply"},
	}

	merged := mergeJob(existing, cand, fixedNow)

	if merged.SalaryMonthlyINR == nil || *merged.SalaryMonthlyINR != salary {
		t.Fatalf("expected salary filled in from candidate")
	}
	if len(merged.Skills) != 1 || merged.Skills[0] != "go" {
		t.Fatalf("expected existing non-empty skills preserved, got %v", merged.Skills)
	}
	if merged.Apply.URL != "https://acme.co/apply" {
		t.Fatalf("expected apply URL filled in from candidate")
	}
	if !merged.LastSeenAt.Equal(fixedNow) {
		t.Fatalf("expected LastSeenAt advanced to now")
	}
}
