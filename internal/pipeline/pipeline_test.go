package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/classify"
	"jobscrape/internal/dedupe"
	"jobscrape/internal/extract"
	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/persist"
	"jobscrape/internal/quality"
)

type fakeRawMsgSource struct {
	msgs []model.RawMessage
}

func (f *fakeRawMsgSource) ListUnprocessed(ctx context.Context, limit int) ([]model.RawMessage, error) {
	if len(f.msgs) > limit {
		return f.msgs[:limit], nil
	}
	return f.msgs, nil
}

type fakeChannelResolver struct{}

func (fakeChannelResolver) Resolve(ctx context.Context, handle string) (model.Channel, error) {
	return model.Channel{ID: 1, Handle: handle}, nil
}

type fakeCompanies struct{ nextID int }

func (f *fakeCompanies) FindOrCreate(ctx context.Context, canonicalName string) (model.Company, error) {
	f.nextID++
	return model.Company{ID: f.nextID, CanonicalName: canonicalName}, nil
}

type fakeJobs struct {
	byHash map[string][]model.Job
	byID   map[uuid.UUID]model.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byHash: make(map[string][]model.Job), byID: make(map[uuid.UUID]model.Job)}
}

func (f *fakeJobs) CreateJob(ctx context.Context, job model.Job) error {
	f.byID[job.ID] = job
	f.byHash[job.ContentHash] = append(f.byHash[job.ContentHash], job)
	return nil
}

func (f *fakeJobs) UpdateJob(ctx context.Context, job model.Job) error {
	f.byID[job.ID] = job
	for i, j := range f.byHash[job.ContentHash] {
		if j.ID == job.ID {
			f.byHash[job.ContentHash][i] = job
		}
	}
	return nil
}

func (f *fakeJobs) FindByContentHash(ctx context.Context, hash string, since time.Time) ([]model.Job, error) {
	var out []model.Job
	for _, j := range f.byHash[hash] {
		if !j.CreatedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeRawMsgUpdater struct {
	processed map[uuid.UUID]model.ProcessingOutcome
}

func newFakeRawMsgUpdater() *fakeRawMsgUpdater {
	return &fakeRawMsgUpdater{processed: make(map[uuid.UUID]model.ProcessingOutcome)}
}

func (f *fakeRawMsgUpdater) MarkProcessed(ctx context.Context, id uuid.UUID, outcome model.ProcessingOutcome, jobID *uuid.UUID) error {
	f.processed[id] = outcome
	return nil
}

type fakeChannelCounters struct{ calls int }

func (f *fakeChannelCounters) MarkScraped(ctx context.Context, channelID int, newLastSeenID *int64, messagesDelta, jobMessagesDelta, qualityJobsDelta int64, scrapedAt time.Time) error {
	f.calls++
	return nil
}

func newTestPipeline(t *testing.T, msgs []model.RawMessage, jobs *fakeJobs, rawUpdater *fakeRawMsgUpdater) *Pipeline {
	t.Helper()
	logger := logging.Discard()
	companies := &fakeCompanies{}
	channels := &fakeChannelCounters{}

	return New(Config{
		RawMsgs:    &fakeRawMsgSource{msgs: msgs},
		Channels:   fakeChannelResolver{},
		Classifier: classify.New(nil, logger),
		Extractor:  extract.New(logger),
		Deduper:    dedupe.New(dedupe.Config{Jobs: jobs, Logger: logger}),
		Scorer:     quality.New(model.Preferences{}),
		Persister: persist.New(persist.Config{
			Companies: companies,
			Jobs:      jobs,
			RawMsgs:   rawUpdater,
			Channels:  channels,
			Logger:    logger,
		}),
		Logger: logger,
	})
}

const jobMessageBody = "We are hiring a Backend Engineer with python skills. Apply now at https://example.com/careers/backend"

const noiseMessageBody = "Good morning everyone! Hope you have a wonderful day ahead, forwarded as received."

func TestRun_NotAJobMessageCountedAndMarked(t *testing.T) {
	msgID := uuid.New()
	jobs := newFakeJobs()
	rawUpdater := newFakeRawMsgUpdater()
	p := newTestPipeline(t, []model.RawMessage{
		{ID: msgID, ChannelHandle: "chan-a", Body: noiseMessageBody},
	}, jobs, rawUpdater)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.NotJobs != 1 || summary.JobsCreated != 0 {
		t.Fatalf("summary = %+v, want 1 not-job, 0 jobs", summary)
	}
	if rawUpdater.processed[msgID] != model.OutcomeNotAJob {
		t.Fatalf("raw message outcome = %v, want not_a_job", rawUpdater.processed[msgID])
	}
}

func TestRun_JobMessageCreatesJobAndMarksProcessed(t *testing.T) {
	msgID := uuid.New()
	jobs := newFakeJobs()
	rawUpdater := newFakeRawMsgUpdater()
	p := newTestPipeline(t, []model.RawMessage{
		{ID: msgID, ChannelHandle: "chan-a", Body: jobMessageBody},
	}, jobs, rawUpdater)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.JobsCreated != 1 {
		t.Fatalf("summary = %+v, want 1 job created", summary)
	}
	if len(jobs.byID) != 1 {
		t.Fatalf("expected exactly one job row, got %d", len(jobs.byID))
	}
	if rawUpdater.processed[msgID] != model.OutcomeJob {
		t.Fatalf("raw message outcome = %v, want job", rawUpdater.processed[msgID])
	}
}

func TestRun_SecondIdenticalMessageCollapsesToDuplicate(t *testing.T) {
	jobs := newFakeJobs()
	rawUpdater := newFakeRawMsgUpdater()

	firstID := uuid.New()
	p1 := newTestPipeline(t, []model.RawMessage{
		{ID: firstID, ChannelHandle: "chan-a", Body: jobMessageBody},
	}, jobs, rawUpdater)
	if _, err := p1.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(jobs.byID) != 1 {
		t.Fatalf("expected one job after first run, got %d", len(jobs.byID))
	}

	secondID := uuid.New()
	p2 := newTestPipeline(t, []model.RawMessage{
		{ID: secondID, ChannelHandle: "chan-a", Body: jobMessageBody},
	}, jobs, rawUpdater)
	summary, err := p2.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Duplicates != 1 || summary.JobsCreated != 0 {
		t.Fatalf("second summary = %+v, want 1 duplicate, 0 new jobs", summary)
	}
	if len(jobs.byID) != 1 {
		t.Fatalf("expected still exactly one job row after duplicate, got %d", len(jobs.byID))
	}
	if rawUpdater.processed[secondID] != model.OutcomeDuplicate {
		t.Fatalf("second raw message outcome = %v, want duplicate", rawUpdater.processed[secondID])
	}
}
