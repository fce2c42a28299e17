package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestTrail(threshold int) (*Trail, *MemorySink) {
	sink := NewMemorySink()
	trail := NewTrail(sink, threshold, slog.New(slog.DiscardHandler))
	return trail, sink
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	trail, _ := newTestTrail(DefaultFlushThreshold)
	at := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	trail.WithClock(func() time.Time { return at })

	entry := trail.Record(Entry{UserID: "user-1", Action: ActionConsentGiven})
	if entry.ID == "" {
		t.Fatal("expected generated id")
	}
	if !entry.Timestamp.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, entry.Timestamp)
	}
}

func TestQueryMostRecentFirstWithFilter(t *testing.T) {
	trail, _ := newTestTrail(DefaultFlushThreshold)
	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	i := 0
	trail.WithClock(func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	})

	trail.Record(Entry{UserID: "user-1", Action: ActionConsentGiven})
	trail.Record(Entry{UserID: "user-1", Action: ActionDataAccessed, CategoryID: "transactions"})
	trail.Record(Entry{UserID: "user-1", Action: ActionDataAccessed, CategoryID: "accounts"})
	trail.Record(Entry{UserID: "user-2", Action: ActionDataAccessed})

	entries := trail.Query("user-1", []Action{ActionDataAccessed}, 0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CategoryID != "accounts" || entries[1].CategoryID != "transactions" {
		t.Fatalf("expected most recent first, got %v then %v", entries[0].CategoryID, entries[1].CategoryID)
	}

	limited := trail.Query("user-1", nil, 1)
	if len(limited) != 1 || limited[0].CategoryID != "accounts" {
		t.Fatalf("expected limit applied to most recent, got %v", limited)
	}
}

func TestRecordFlushesAtThreshold(t *testing.T) {
	trail, sink := newTestTrail(3)
	ctx := context.Background()

	trail.Record(Entry{UserID: "u", Action: ActionDataAccessed})
	trail.Record(Entry{UserID: "u", Action: ActionDataAccessed})
	if err := trail.FlushIfNeeded(ctx); err != nil {
		t.Fatalf("FlushIfNeeded: %v", err)
	}
	if len(sink.Entries()) != 0 {
		t.Fatalf("below threshold must not flush, sink has %d", len(sink.Entries()))
	}

	// The third record crosses the threshold and drains on its own.
	trail.Record(Entry{UserID: "u", Action: ActionDataAccessed})
	if len(sink.Entries()) != 3 {
		t.Fatalf("expected 3 flushed entries, got %d", len(sink.Entries()))
	}
	if trail.PendingCount() != 0 {
		t.Fatalf("expected pending drained, got %d", trail.PendingCount())
	}
}

func TestRecordKeepsFlushingUnderSustainedLoad(t *testing.T) {
	trail, sink := newTestTrail(100)

	for i := 0; i < 250; i++ {
		trail.Record(Entry{UserID: "u", Action: ActionDataAccessed})
	}
	if len(sink.Entries()) != 200 {
		t.Fatalf("expected two threshold flushes (200 entries), sink has %d", len(sink.Entries()))
	}
	if trail.PendingCount() != 50 {
		t.Fatalf("expected 50 entries pending, got %d", trail.PendingCount())
	}

	if err := trail.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(sink.Entries()) != 250 {
		t.Fatalf("expected all 250 entries delivered, got %d", len(sink.Entries()))
	}
}

type failingSink struct {
	mu   sync.Mutex
	fail bool
	seen int
}

func (s *failingSink) Append(_ context.Context, batch []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.seen += len(batch)
	return nil
}

func TestFlushRestoresBatchOnSinkError(t *testing.T) {
	sink := &failingSink{fail: true}
	trail := NewTrail(sink, 1, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	trail.Record(Entry{UserID: "u", Action: ActionDataAccessed})
	if err := trail.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if trail.PendingCount() != 1 {
		t.Fatalf("failed batch must be restored, pending=%d", trail.PendingCount())
	}

	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	if err := trail.Flush(ctx); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if trail.PendingCount() != 0 || sink.seen != 1 {
		t.Fatalf("expected entry delivered on retry, pending=%d seen=%d", trail.PendingCount(), sink.seen)
	}
}

type stubReader struct {
	entries []Entry
	err     error
}

func (s *stubReader) Recent(context.Context, string, int) ([]Entry, error) {
	return s.entries, s.err
}

func TestHistoryMergesPersistedEntries(t *testing.T) {
	trail, _ := newTestTrail(DefaultFlushThreshold)
	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	i := 0
	trail.WithClock(func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Minute)
	})

	hot := trail.Record(Entry{UserID: "u", Action: ActionDataAccessed, CategoryID: "accounts"})
	trail.WithReader(&stubReader{entries: []Entry{
		hot, // already cached, must not duplicate
		{ID: "old-1", UserID: "u", Action: ActionConsentGiven, Timestamp: base.Add(-time.Hour)},
		{ID: "old-2", UserID: "u", Action: ActionDataAccessed, Timestamp: base.Add(-2 * time.Hour)},
	}})

	entries, err := trail.History(context.Background(), "u", nil, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 merged entries, got %d", len(entries))
	}
	if entries[0].ID != hot.ID || entries[1].ID != "old-1" || entries[2].ID != "old-2" {
		t.Fatalf("expected newest first without duplicates, got %v %v %v",
			entries[0].ID, entries[1].ID, entries[2].ID)
	}

	accessed, err := trail.History(context.Background(), "u", []Action{ActionDataAccessed}, 0)
	if err != nil {
		t.Fatalf("History filtered: %v", err)
	}
	if len(accessed) != 2 {
		t.Fatalf("action filter must apply to persisted entries too, got %d", len(accessed))
	}
}

func TestHistoryWithoutReaderServesCache(t *testing.T) {
	trail, _ := newTestTrail(DefaultFlushThreshold)
	trail.Record(Entry{UserID: "u", Action: ActionConsentGiven})

	entries, err := trail.History(context.Background(), "u", nil, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the cached entry, got %d", len(entries))
	}
}

func TestRecordBoundsPerUserCache(t *testing.T) {
	trail, _ := newTestTrail(DefaultFlushThreshold)
	for i := 0; i < maxCachedPerUser+25; i++ {
		trail.Record(Entry{UserID: "u", Action: ActionDataAccessed})
	}
	if got := len(trail.Query("u", nil, 0)); got != maxCachedPerUser {
		t.Fatalf("expected cache bounded at %d, got %d", maxCachedPerUser, got)
	}
}

func TestQueryIsolatedPerUser(t *testing.T) {
	trail, _ := newTestTrail(DefaultFlushThreshold)
	trail.Record(Entry{UserID: "a", Action: ActionConsentGiven})
	trail.Record(Entry{UserID: "b", Action: ActionConsentGiven})

	if got := trail.Query("a", nil, 0); len(got) != 1 || got[0].UserID != "a" {
		t.Fatalf("expected only user a entries, got %v", got)
	}
	if n := trail.CountByAction("b", ActionConsentGiven); n != 1 {
		t.Fatalf("expected user b count 1, got %d", n)
	}
}
