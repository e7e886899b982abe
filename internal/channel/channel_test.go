package channel

import (
	"context"
	"testing"
	"time"

	"jobscrape/internal/channel/memory"
	"jobscrape/internal/model"
)

func TestActiveChannels_OrderedByHealthThenStaleness(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Seed(model.Channel{ID: 1, HealthScore: 50, LastScrapedAt: now, Status: model.ChannelActive})
	store.Seed(model.Channel{ID: 2, HealthScore: 80, LastScrapedAt: now, Status: model.ChannelActive})
	store.Seed(model.Channel{ID: 3, HealthScore: 80, LastScrapedAt: now.Add(-time.Hour), Status: model.ChannelProbation})
	store.Seed(model.Channel{ID: 4, HealthScore: 10, LastScrapedAt: now, Status: model.ChannelDeactivated})

	r := New(store)
	chans, err := r.ActiveChannels(context.Background())
	if err != nil {
		t.Fatalf("ActiveChannels: %v", err)
	}
	if len(chans) != 3 {
		t.Fatalf("expected 3 active/probation channels, got %d", len(chans))
	}
	if chans[0].ID != 3 || chans[1].ID != 2 || chans[2].ID != 1 {
		ids := []int{chans[0].ID, chans[1].ID, chans[2].ID}
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestMarkScraped_AdvancesWatermark(t *testing.T) {
	store := memory.NewStore()
	store.Seed(model.Channel{ID: 1, Status: model.ChannelActive})

	r := New(store)
	seen := int64(100)
	if err := r.MarkScraped(context.Background(), 1, &seen, 5, 2, 1, time.Time{}); err != nil {
		t.Fatalf("MarkScraped: %v", err)
	}

	ch, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ch.LastSeenMessageID == nil || *ch.LastSeenMessageID != 100 {
		t.Fatalf("expected watermark 100, got %v", ch.LastSeenMessageID)
	}
	if ch.MessagesScraped != 5 || ch.JobMessagesFound != 2 || ch.QualityJobsFound != 1 {
		t.Fatalf("unexpected counters: %+v", ch)
	}
}

func TestMarkScraped_RejectsStaleWatermark(t *testing.T) {
	store := memory.NewStore()
	seen := int64(100)
	store.Seed(model.Channel{ID: 1, Status: model.ChannelActive, LastSeenMessageID: &seen})

	r := New(store)
	stale := int64(50)
	err := r.MarkScraped(context.Background(), 1, &stale, 1, 0, 0, time.Time{})
	if err == nil {
		t.Fatal("expected error for stale watermark")
	}
}

func TestAssignAccount_PutsChannelOnProbationWhenPriorAccountBanned(t *testing.T) {
	store := memory.NewStore()
	store.Seed(model.Channel{ID: 1, Status: model.ChannelActive})

	r := New(store)
	if err := r.AssignAccount(context.Background(), 1, 42, true); err != nil {
		t.Fatalf("AssignAccount: %v", err)
	}

	ch, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ch.Status != model.ChannelProbation {
		t.Errorf("expected probation, got %s", ch.Status)
	}
	if ch.AssignedAccountID == nil || *ch.AssignedAccountID != 42 {
		t.Errorf("expected assigned account 42, got %v", ch.AssignedAccountID)
	}
}
