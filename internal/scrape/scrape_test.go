package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"jobscrape/internal/account"
	"jobscrape/internal/channel"
	"jobscrape/internal/govern"
	"jobscrape/internal/model"
	"jobscrape/internal/platform"
)

// fakeAccountStore is a minimal in-memory account.Store for tests.
type fakeAccountStore struct {
	accounts map[int]model.Account
}

func newFakeAccountStore(accs ...model.Account) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[int]model.Account)}
	for _, a := range accs {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) ListAvailable(ctx context.Context) ([]model.Account, error) {
	var out []model.Account
	for _, a := range s.accounts {
		if a.IsActive && !a.IsBanned {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) TryLease(ctx context.Context, accountID int, ttl time.Duration) (string, bool, error) {
	return "token", true, nil
}

func (s *fakeAccountStore) RenewLease(ctx context.Context, accountID int, token string, ttl time.Duration) error {
	return nil
}

func (s *fakeAccountStore) ReleaseLease(ctx context.Context, accountID int, token string) error {
	return nil
}

func (s *fakeAccountStore) Get(ctx context.Context, accountID int) (model.Account, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return model.Account{}, errors.New("not found")
	}
	return a, nil
}

func (s *fakeAccountStore) Update(ctx context.Context, acc model.Account) error {
	s.accounts[acc.ID] = acc
	return nil
}

// fakeChannelStore is a minimal in-memory channel.Store for tests.
type fakeChannelStore struct {
	channels map[int]model.Channel
}

func newFakeChannelStore(chs ...model.Channel) *fakeChannelStore {
	s := &fakeChannelStore{channels: make(map[int]model.Channel)}
	for _, c := range chs {
		s.channels[c.ID] = c
	}
	return s
}

func (s *fakeChannelStore) ActiveChannels(ctx context.Context) ([]model.Channel, error) {
	var out []model.Channel
	for _, c := range s.channels {
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeChannelStore) Get(ctx context.Context, id int) (model.Channel, error) {
	c, ok := s.channels[id]
	if !ok {
		return model.Channel{}, channel.ErrNotFound
	}
	return c, nil
}

func (s *fakeChannelStore) GetByHandle(ctx context.Context, handle string) (model.Channel, error) {
	for _, c := range s.channels {
		if c.Handle == handle {
			return c, nil
		}
	}
	return model.Channel{}, channel.ErrNotFound
}

func (s *fakeChannelStore) Update(ctx context.Context, ch model.Channel) error {
	s.channels[ch.ID] = ch
	return nil
}

func (s *fakeChannelStore) IncrementCounters(ctx context.Context, channelID int, messagesDelta, jobMessagesDelta, qualityJobsDelta int64, scrapedAt time.Time) error {
	c, ok := s.channels[channelID]
	if !ok {
		return channel.ErrNotFound
	}
	c.MessagesScraped += messagesDelta
	c.JobMessagesFound += jobMessagesDelta
	c.QualityJobsFound += qualityJobsDelta
	if !scrapedAt.IsZero() {
		c.LastScrapedAt = scrapedAt
	}
	s.channels[channelID] = c
	return nil
}

func (s *fakeChannelStore) CompareAndSwapLastSeen(ctx context.Context, channelID int, candidate int64) (bool, error) {
	c := s.channels[channelID]
	if c.LastSeenMessageID != nil && *c.LastSeenMessageID >= candidate {
		return false, nil
	}
	c.LastSeenMessageID = &candidate
	s.channels[channelID] = c
	return true, nil
}

// fakeSessions is a session.Store that always returns an empty blob.
type fakeSessions struct{}

func (fakeSessions) Load(ctx context.Context, accountID int) ([]byte, error) { return nil, nil }
func (fakeSessions) Save(ctx context.Context, accountID int, data []byte) error { return nil }

// fakeClient is a platform.Client stub.
type fakeClient struct {
	messages []platform.Message
	err      error
}

func (c *fakeClient) Fetch(ctx context.Context, channelHandle string, minID *int64, limit int) ([]platform.Message, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.messages, nil
}
func (c *fakeClient) Join(ctx context.Context, channelHandle string) error { return nil }
func (c *fakeClient) Close() error                                        { return nil }

// fakeRawStore is a minimal rawstore.Store for tests.
type fakeRawStore struct {
	upserted []model.RawMessage
}

func (s *fakeRawStore) Upsert(ctx context.Context, msg model.RawMessage) (model.RawMessage, error) {
	msg.ID = uuid.New()
	s.upserted = append(s.upserted, msg)
	return msg, nil
}
func (s *fakeRawStore) Get(ctx context.Context, id uuid.UUID) (model.RawMessage, error) {
	return model.RawMessage{}, nil
}
func (s *fakeRawStore) ListUnprocessed(ctx context.Context, limit int) ([]model.RawMessage, error) {
	return nil, nil
}
func (s *fakeRawStore) MarkProcessed(ctx context.Context, id uuid.UUID, outcome model.ProcessingOutcome, jobID *uuid.UUID) error {
	return nil
}
func (s *fakeRawStore) ListByChannel(ctx context.Context, handle string) ([]model.RawMessage, error) {
	return nil, nil
}
func (s *fakeRawStore) CountProcessedWithoutOutcome(ctx context.Context) (int, error) {
	return 0, nil
}
func (s *fakeRawStore) ResetStuck(ctx context.Context) (int, error) {
	return 0, nil
}

func newTestGovernor(t *testing.T) *govern.Governor {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return govern.New(rdb, 0, time.Minute)
}

func newTestWorker(t *testing.T, accStore *fakeAccountStore, chStore *fakeChannelStore, client platform.Client, raw *fakeRawStore) *Worker {
	t.Helper()
	pool := account.New(accStore, time.Minute, 3, 10)
	registry := channel.New(chStore)
	governor := newTestGovernor(t)
	factory := func(ctx context.Context, accountID int, sessionData []byte) (platform.Client, error) {
		return client, nil
	}
	return New(Config{
		Accounts:      pool,
		Channels:      registry,
		Governor:      governor,
		Sessions:      fakeSessions{},
		ClientFactory: factory,
		RawMsgs:       raw,
	})
}

func TestScrapeChannel_FirstFetchStoresMessagesAndAdvancesWatermark(t *testing.T) {
	accStore := newFakeAccountStore(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a"})
	client := &fakeClient{messages: []platform.Message{
		{ID: 100, Body: "hello jobs"},
		{ID: 99, Body: "older message"},
	}}
	raw := &fakeRawStore{}
	w := newTestWorker(t, accStore, chStore, client, raw)

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Outcome != OutcomeFetched {
		t.Fatalf("Outcome = %v, want fetched (err=%v)", r.Outcome, r.Err)
	}
	if r.MessagesFetched != 2 {
		t.Fatalf("MessagesFetched = %d, want 2", r.MessagesFetched)
	}
	if len(raw.upserted) != 2 {
		t.Fatalf("expected 2 messages upserted, got %d", len(raw.upserted))
	}
	updated := chStore.channels[10]
	if updated.LastSeenMessageID == nil || *updated.LastSeenMessageID != 100 {
		t.Fatalf("LastSeenMessageID = %v, want 100", updated.LastSeenMessageID)
	}
}

func TestScrapeChannel_EmptyBodySkipped(t *testing.T) {
	accStore := newFakeAccountStore(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a"})
	client := &fakeClient{messages: []platform.Message{
		{ID: 100, Body: ""},
		{ID: 99, Body: "keep this one"},
	}}
	raw := &fakeRawStore{}
	w := newTestWorker(t, accStore, chStore, client, raw)

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if results[0].MessagesFetched != 1 {
		t.Fatalf("MessagesFetched = %d, want 1 (empty-body message skipped)", results[0].MessagesFetched)
	}
}

func TestScrapeChannel_NoAccountAvailable(t *testing.T) {
	accStore := newFakeAccountStore() // no accounts
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a"})
	raw := &fakeRawStore{}
	w := newTestWorker(t, accStore, chStore, &fakeClient{}, raw)

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if results[0].Outcome != OutcomeNoAccountAvailable {
		t.Fatalf("Outcome = %v, want no_account_available", results[0].Outcome)
	}
	if len(raw.upserted) != 0 {
		t.Fatalf("expected no messages written when no account is available")
	}
}

func TestScrapeChannel_ChannelPrivateDeactivates(t *testing.T) {
	accStore := newFakeAccountStore(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a", Status: model.ChannelActive})
	client := &fakeClient{err: platform.ErrChannelPrivate}
	raw := &fakeRawStore{}
	w := newTestWorker(t, accStore, chStore, client, raw)

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if results[0].Outcome != OutcomeChannelDeactivated {
		t.Fatalf("Outcome = %v, want channel_deactivated", results[0].Outcome)
	}
	if chStore.channels[10].Status != model.ChannelDeactivated {
		t.Fatalf("expected channel status deactivated, got %v", chStore.channels[10].Status)
	}
}

func TestScrapeChannel_UsesAssignedAccount(t *testing.T) {
	acc1 := 1
	accStore := newFakeAccountStore(
		model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy},
		model.Account{ID: 2, IsActive: true, Health: model.AccountHealthy},
	)
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a", AssignedAccountID: &acc1})
	client := &fakeClient{messages: []platform.Message{{ID: 5, Body: "text"}}}
	raw := &fakeRawStore{}
	w := newTestWorker(t, accStore, chStore, client, raw)

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if results[0].AccountID != 1 {
		t.Fatalf("AccountID = %d, want the assigned account 1", results[0].AccountID)
	}
}

func TestScrapeChannel_BannedAssignedAccountReassigns(t *testing.T) {
	banned := 1
	accStore := newFakeAccountStore(
		model.Account{ID: 1, IsActive: false, IsBanned: true, Health: model.AccountBanned},
		model.Account{ID: 2, IsActive: true, Health: model.AccountHealthy},
	)
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a", Status: model.ChannelActive, AssignedAccountID: &banned})
	client := &fakeClient{messages: []platform.Message{{ID: 5, Body: "text"}}}
	raw := &fakeRawStore{}
	w := newTestWorker(t, accStore, chStore, client, raw)

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if results[0].Outcome != OutcomeFetched {
		t.Fatalf("Outcome = %v, want fetched (err=%v)", results[0].Outcome, results[0].Err)
	}
	if results[0].AccountID != 2 {
		t.Fatalf("AccountID = %d, want the healthy account 2", results[0].AccountID)
	}
	updated := chStore.channels[10]
	if updated.AssignedAccountID == nil || *updated.AssignedAccountID != 2 {
		t.Fatalf("AssignedAccountID = %v, want reassignment to 2", updated.AssignedAccountID)
	}
	if updated.Status != model.ChannelProbation {
		t.Fatalf("Status = %v, want probation after reassignment away from a banned account", updated.Status)
	}
}

func TestScrapeChannel_FloodWaitExceedsCeilingIncrementsConsecutiveErrors(t *testing.T) {
	accStore := newFakeAccountStore(model.Account{ID: 1, IsActive: true, Health: model.AccountHealthy})
	chStore := newFakeChannelStore(model.Channel{ID: 10, Handle: "chan-a"})
	client := &fakeClient{err: platform.FloodWaitError{Wait: 120 * time.Second}}
	raw := &fakeRawStore{}

	pool := account.New(accStore, time.Minute, 3, 10)
	registry := channel.New(chStore)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	governor := govern.New(rdb, 0, 60*time.Second) // ceiling below the reported wait

	factory := func(ctx context.Context, accountID int, sessionData []byte) (platform.Client, error) {
		return client, nil
	}
	w := New(Config{Accounts: pool, Channels: registry, Governor: governor, Sessions: fakeSessions{}, ClientFactory: factory, RawMsgs: raw})

	results := w.ScrapeBatch(context.Background(), []model.Channel{chStore.channels[10]})
	if results[0].Outcome != OutcomeRateLimited {
		t.Fatalf("Outcome = %v, want rate_limited", results[0].Outcome)
	}
	if len(raw.upserted) != 0 {
		t.Fatalf("expected no raw messages written on flood-wait skip")
	}
	if accStore.accounts[1].ConsecutiveErrors != 1 {
		t.Fatalf("ConsecutiveErrors = %d, want 1", accStore.accounts[1].ConsecutiveErrors)
	}
}
