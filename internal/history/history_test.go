package history

import (
	"context"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_History_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Event{Kind: KindIngest, Collection: "sops", Subject: "reefer.pdf", Count: 4}); err != nil {
		t.Fatalf("record ingest: %v", err)
	}
	if err := s.Record(ctx, Event{Kind: KindQuery, Collection: "sops", Subject: "temperature breach duration", Count: 3}); err != nil {
		t.Fatalf("record query: %v", err)
	}

	events, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events, got %d", len(events))
	}
	if events[0].Kind != KindQuery || events[0].Subject != "temperature breach duration" {
		t.Errorf("events[0]: want the query first (newest), got %s/%s", events[0].Kind, events[0].Subject)
	}
	if events[1].Kind != KindIngest || events[1].Count != 4 {
		t.Errorf("events[1]: want ingest/4, got %s/%d", events[1].Kind, events[1].Count)
	}
}

func Test_History_KindFilter(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Event{Kind: KindIngest, Collection: "sops", Subject: "a.pdf", Count: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, Event{Kind: KindQuery, Collection: "sops", Subject: "q", Count: 2}); err != nil {
		t.Fatalf("record: %v", err)
	}

	events, err := s.Recent(ctx, KindQuery, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindQuery {
		t.Errorf("kind filter failed: got %v", events)
	}
}

func Test_History_LimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.Record(ctx, Event{Kind: KindQuery, Collection: "sops", Subject: "q", Count: 0}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := s.Recent(ctx, KindQuery, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("want 4 events, got %d", len(events))
	}
}

func Test_History_NewestFirstOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	subjects := []string{"first", "second", "third"}
	for i, sub := range subjects {
		ev := Event{Kind: KindIngest, Collection: "sops", Subject: sub, Count: 1, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	for i, want := range []string{"third", "second", "first"} {
		if events[i].Subject != want {
			t.Errorf("events[%d]: want %q, got %q", i, want, events[i].Subject)
		}
	}
}

func Test_History_EmptyStoreReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	events, err := s.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("want 0 events, got %d", len(events))
	}
}
