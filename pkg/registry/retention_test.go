package registry

import (
	"context"
	"testing"
	"time"
)

func appendEventAt(t *testing.T, store *Store, channelID string, at time.Time) {
	t.Helper()
	err := store.AppendEvent(context.Background(), &Event{
		ChannelID: channelID,
		Kind:      "dispatch",
		OK:        true,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
}

func TestRetentionPrune(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	appendEventAt(t, store, "ch-1", now.Add(-10*24*time.Hour))
	appendEventAt(t, store, "ch-1", now.Add(-8*24*time.Hour))
	appendEventAt(t, store, "ch-1", now.Add(-time.Hour))

	r := NewRetention(store, &RetentionConfig{Window: 7 * 24 * time.Hour})
	deleted, err := r.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	remaining, err := store.RecentEvents(context.Background(), "ch-1", 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining events = %d, want 1", len(remaining))
	}
}

func TestRetentionPruneNothingToDelete(t *testing.T) {
	store := newTestStore(t)
	appendEventAt(t, store, "ch-1", time.Now().UTC())

	r := NewRetention(store, &RetentionConfig{Window: 7 * 24 * time.Hour})
	deleted, err := r.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestRetentionStartRejectsBadSchedule(t *testing.T) {
	store := newTestStore(t)
	r := NewRetention(store, &RetentionConfig{Window: time.Hour, Schedule: "not a cron"})

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want invalid schedule error")
	}
}

func TestRetentionStartWithoutSchedule(t *testing.T) {
	store := newTestStore(t)
	r := NewRetention(store, &RetentionConfig{Window: time.Hour})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.Stop()
}
