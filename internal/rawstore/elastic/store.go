// Package elastic implements rawstore.Store on top of Elasticsearch. Raw
// messages are indexed with a deterministic document id derived from their
// compound key, so repeated upserts of the same platform message land on
// the same document.
package elastic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/google/uuid"

	"jobscrape/internal/logging"
	"jobscrape/internal/model"
	"jobscrape/internal/rawstore"
)

// IndexName is the default raw_messages index name; Config.Index overrides it.
const IndexName = "raw_messages"

// Config configures a Store.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string // defaults to IndexName
	Logger    *slog.Logger
}

// Store is a rawstore.Store implementation backed by Elasticsearch.
type Store struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// Mapping is the index mapping jobscrape expects; callers create the index
// with this mapping once before the pipeline starts writing to it.
const Mapping = `{
  "mappings": {
    "properties": {
      "id": {"type": "keyword"},
      "platform_message_id": {"type": "long"},
      "channel_handle": {"type": "keyword"},
      "body": {"type": "text"},
      "sender_id": {"type": "long"},
      "authored_at": {"type": "date"},
      "fetched_at": {"type": "date"},
      "fetching_account_id": {"type": "integer"},
      "processed": {"type": "boolean"},
      "processing_outcome": {"type": "keyword"},
      "job_id": {"type": "keyword"}
    }
  }
}`

// New creates a Store against the given Elasticsearch cluster.
func New(cfg Config) (*Store, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("rawstore/elastic: new client: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = IndexName
	}
	return &Store{
		client: client,
		index:  index,
		logger: logging.Default(cfg.Logger).With("component", "rawstore.elastic"),
	}, nil
}

// document is the JSON shape stored in Elasticsearch for a RawMessage.
type document struct {
	ID                  uuid.UUID `json:"id"`
	PlatformMessageID   int64     `json:"platform_message_id"`
	ChannelHandle       string    `json:"channel_handle"`
	Body                string    `json:"body"`
	SenderID            int64     `json:"sender_id"`
	AuthoredAt          time.Time `json:"authored_at"`
	FetchedAt           time.Time `json:"fetched_at"`
	FetchingAccountID   int       `json:"fetching_account_id"`
	Processed           bool      `json:"processed"`
	ProcessingOutcome   string    `json:"processing_outcome"`
	JobID               string    `json:"job_id,omitempty"`
}

func toDocument(m model.RawMessage) document {
	d := document{
		ID:                m.ID,
		PlatformMessageID: m.PlatformMessageID,
		ChannelHandle:     m.ChannelHandle,
		Body:              m.Body,
		SenderID:          m.SenderID,
		AuthoredAt:        m.AuthoredAt,
		FetchedAt:         m.FetchedAt,
		FetchingAccountID: m.FetchingAccountID,
		Processed:         m.Processed,
		ProcessingOutcome: string(m.ProcessingOutcome),
	}
	if m.JobID != nil {
		d.JobID = m.JobID.String()
	}
	return d
}

func (d document) toModel() model.RawMessage {
	m := model.RawMessage{
		ID:                d.ID,
		PlatformMessageID: d.PlatformMessageID,
		ChannelHandle:     d.ChannelHandle,
		Body:              d.Body,
		SenderID:          d.SenderID,
		AuthoredAt:        d.AuthoredAt,
		FetchedAt:         d.FetchedAt,
		FetchingAccountID: d.FetchingAccountID,
		Processed:         d.Processed,
		ProcessingOutcome: model.ProcessingOutcome(d.ProcessingOutcome),
	}
	if d.JobID != "" {
		if id, err := uuid.Parse(d.JobID); err == nil {
			m.JobID = &id
		}
	}
	return m
}

// docID derives a deterministic Elasticsearch document id from a RawMessage
// compound key, so repeated Upsert calls for the same platform message map
// onto the same document.
func docID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Upsert implements rawstore.Store.
func (s *Store) Upsert(ctx context.Context, msg model.RawMessage) (model.RawMessage, error) {
	id := docID(msg.Key())

	existing, err := s.getByDocID(ctx, id)
	if err != nil && err != rawstore.ErrNotFound {
		return model.RawMessage{}, err
	}
	if err == nil {
		msg.ID = existing.ID
		msg.Processed = existing.Processed
		msg.ProcessingOutcome = existing.ProcessingOutcome
		msg.JobID = existing.JobID
	} else if msg.ID == uuid.Nil {
		msg.ID = uuid.Must(uuid.NewV7())
	}

	if err := s.writeDoc(ctx, id, msg); err != nil {
		return model.RawMessage{}, err
	}
	return msg, nil
}

// writeDoc writes msg verbatim under docID, replacing whatever is there. The
// merge-with-existing logic lives in Upsert; MarkProcessed and ResetStuck
// write their already-resolved state directly so their field changes are
// never overridden by the stored document.
func (s *Store) writeDoc(ctx context.Context, id string, msg model.RawMessage) error {
	body, err := json.Marshal(toDocument(msg))
	if err != nil {
		return fmt.Errorf("rawstore/elastic: marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("rawstore/elastic: index document %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("rawstore/elastic: index document %s: %s", id, res.Status())
	}
	return nil
}

func (s *Store) getByDocID(ctx context.Context, id string) (model.RawMessage, error) {
	req := esapi.GetRequest{Index: s.index, DocumentID: id}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return model.RawMessage{}, fmt.Errorf("rawstore/elastic: get document %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return model.RawMessage{}, rawstore.ErrNotFound
	}
	if res.IsError() {
		return model.RawMessage{}, fmt.Errorf("rawstore/elastic: get document %s: %s", id, res.Status())
	}

	var hit struct {
		Found  bool     `json:"found"`
		Source document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&hit); err != nil {
		return model.RawMessage{}, fmt.Errorf("rawstore/elastic: decode document %s: %w", id, err)
	}
	if !hit.Found {
		return model.RawMessage{}, rawstore.ErrNotFound
	}
	return hit.Source.toModel(), nil
}

// Get implements rawstore.Store.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.RawMessage, error) {
	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(mustMarshal(termQuery("id", id.String(), 1))),
	}.Do(ctx, s.client)
	if err != nil {
		return model.RawMessage{}, fmt.Errorf("rawstore/elastic: search by id %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return model.RawMessage{}, fmt.Errorf("rawstore/elastic: search by id %s: %s", id, res.Status())
	}

	docs, err := decodeHits(res)
	if err != nil {
		return model.RawMessage{}, err
	}
	if len(docs) == 0 {
		return model.RawMessage{}, rawstore.ErrNotFound
	}
	return docs[0], nil
}

// ListUnprocessed implements rawstore.Store.
func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]model.RawMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	query := map[string]any{
		"size": limit,
		"sort": []map[string]any{{"fetched_at": "asc"}},
		"query": map[string]any{
			"term": map[string]any{"processed": false},
		},
	}
	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(mustMarshal(query)),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("rawstore/elastic: search unprocessed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("rawstore/elastic: search unprocessed: %s", res.Status())
	}
	return decodeHits(res)
}

// MarkProcessed implements rawstore.Store.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, outcome model.ProcessingOutcome, jobID *uuid.UUID) error {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	msg.Processed = true
	msg.ProcessingOutcome = outcome
	msg.JobID = jobID
	return s.writeDoc(ctx, docID(msg.Key()), msg)
}

// ListByChannel implements rawstore.Store. It returns at most 10,000
// documents; any beyond that are not returned.
func (s *Store) ListByChannel(ctx context.Context, channelHandle string) ([]model.RawMessage, error) {
	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(mustMarshal(termQuery("channel_handle", channelHandle, 10000))),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("rawstore/elastic: search by channel %s: %w", channelHandle, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("rawstore/elastic: search by channel %s: %s", channelHandle, res.Status())
	}
	return decodeHits(res)
}

// CountProcessedWithoutOutcome implements rawstore.Store.
func (s *Store) CountProcessedWithoutOutcome(ctx context.Context) (int, error) {
	query := map[string]any{
		"query": stuckQuery(),
	}
	res, err := esapi.CountRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(mustMarshal(query)),
	}.Do(ctx, s.client)
	if err != nil {
		return 0, fmt.Errorf("rawstore/elastic: count processed without outcome: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("rawstore/elastic: count processed without outcome: %s", res.Status())
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("rawstore/elastic: decode count response: %w", err)
	}
	return out.Count, nil
}

// ResetStuck implements rawstore.Store. It resets at most 10,000 documents
// per call; any beyond that stay stuck until a later call.
func (s *Store) ResetStuck(ctx context.Context) (int, error) {
	query := map[string]any{
		"size":  10000,
		"query": stuckQuery(),
	}
	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(mustMarshal(query)),
	}.Do(ctx, s.client)
	if err != nil {
		return 0, fmt.Errorf("rawstore/elastic: search stuck: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("rawstore/elastic: search stuck: %s", res.Status())
	}
	stuck, err := decodeHits(res)
	if err != nil {
		return 0, err
	}
	for _, msg := range stuck {
		msg.Processed = false
		msg.JobID = nil
		if err := s.writeDoc(ctx, docID(msg.Key()), msg); err != nil {
			return 0, fmt.Errorf("rawstore/elastic: reset stuck %s: %w", msg.ID, err)
		}
	}
	return len(stuck), nil
}

// stuckQuery matches documents marked processed without a terminal outcome
// tag, the inconsistency CountProcessedWithoutOutcome reports and ResetStuck
// repairs. Both conditions are must clauses: a should next to a must only
// influences scoring, it doesn't filter.
func stuckQuery() map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"term": map[string]any{"processed": true}},
				{"term": map[string]any{"processing_outcome": ""}},
			},
		},
	}
}

func termQuery(field, value string, size int) map[string]any {
	return map[string]any{
		"size":  size,
		"query": map[string]any{"term": map[string]any{field: value}},
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("rawstore/elastic: marshal query: %v", err))
	}
	return b
}

func decodeHits(res *esapi.Response) ([]model.RawMessage, error) {
	var parsed struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rawstore/elastic: decode search response: %w", err)
	}
	out := make([]model.RawMessage, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source.toModel())
	}
	return out, nil
}
