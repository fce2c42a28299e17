package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFlushThreshold is the pending-entry count that triggers a flush.
const DefaultFlushThreshold = 100

// maxCachedPerUser bounds the in-memory per-user history; older entries
// remain reachable through the Reader.
const maxCachedPerUser = 500

// Sink persists drained audit batches to durable storage.
type Sink interface {
	Append(ctx context.Context, entries []Entry) error
}

// Reader loads a user's persisted entries, newest first.
type Reader interface {
	Recent(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// Trail is the append-only audit log. Appends happen in memory under a
// short critical section; durable-sink I/O always runs outside the lock.
type Trail struct {
	mu      sync.Mutex
	byUser  map[string][]Entry
	pending []Entry

	sink      Sink
	reader    Reader
	threshold int
	logger    *slog.Logger
	clock     func() time.Time
}

// NewTrail constructs a Trail flushing to the given sink. A nil sink keeps
// the trail purely in memory. threshold <= 0 selects the default.
func NewTrail(sink Sink, threshold int, logger *slog.Logger) *Trail {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{
		byUser:    make(map[string][]Entry),
		sink:      sink,
		threshold: threshold,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (t *Trail) WithClock(clock func() time.Time) *Trail {
	t.clock = clock
	return t
}

// WithReader attaches cold storage so History survives process restarts.
func (t *Trail) WithReader(r Reader) *Trail {
	t.reader = r
	return t
}

// Record appends an entry, assigning ID and timestamp when absent, and
// returns the stored entry. Once the pending cache reaches the threshold the
// batch is drained to the sink before returning; a failed drain is logged
// and retried on the next flush.
func (t *Trail) Record(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.clock()
	}

	t.mu.Lock()
	cached := append(t.byUser[entry.UserID], entry)
	if len(cached) > maxCachedPerUser {
		cached = append(cached[:0:0], cached[len(cached)-maxCachedPerUser:]...)
	}
	t.byUser[entry.UserID] = cached
	t.pending = append(t.pending, entry)
	needFlush := len(t.pending) >= t.threshold
	t.mu.Unlock()

	if needFlush {
		if err := t.FlushIfNeeded(context.Background()); err != nil {
			t.logger.Error("threshold audit flush", slog.Any("error", err))
		}
	}
	return entry
}

// FlushIfNeeded drains the pending cache to the sink once it reaches the
// configured threshold. The failure is retryable: on sink error the batch is
// restored so no entry is lost.
func (t *Trail) FlushIfNeeded(ctx context.Context) error {
	t.mu.Lock()
	if len(t.pending) < t.threshold {
		t.mu.Unlock()
		return nil
	}
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	return t.write(ctx, batch)
}

// Flush drains all pending entries regardless of threshold.
func (t *Trail) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return t.write(ctx, batch)
}

func (t *Trail) write(ctx context.Context, batch []Entry) error {
	if t.sink == nil {
		return nil
	}
	if err := t.sink.Append(ctx, batch); err != nil {
		t.mu.Lock()
		t.pending = append(batch, t.pending...)
		t.mu.Unlock()
		return fmt.Errorf("audit: flush %d entries: %w", len(batch), err)
	}
	t.logger.Info("flushed audit entries", slog.Int("count", len(batch)))
	return nil
}

// PendingCount reports the number of entries waiting for a flush.
func (t *Trail) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Query returns a user's entries most-recent-first, optionally filtered by
// action, capped at limit (limit <= 0 means no cap).
func (t *Trail) Query(userID string, actions []Action, limit int) []Entry {
	t.mu.Lock()
	source := t.byUser[userID]
	entries := make([]Entry, len(source))
	copy(entries, source)
	t.mu.Unlock()

	var filter map[Action]struct{}
	if len(actions) > 0 {
		filter = make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			filter[a] = struct{}{}
		}
	}

	result := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if filter != nil {
			if _, ok := filter[entries[i].Action]; !ok {
				continue
			}
		}
		result = append(result, entries[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// History returns a user's entries most-recent-first across both the hot
// cache and the attached Reader, deduplicated by entry ID, optionally
// filtered by action, capped at limit (limit <= 0 means the reader default).
func (t *Trail) History(ctx context.Context, userID string, actions []Action, limit int) ([]Entry, error) {
	hot := t.Query(userID, actions, limit)
	if t.reader == nil {
		return hot, nil
	}

	cold, err := t.reader.Recent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: load persisted entries: %w", err)
	}

	var filter map[Action]struct{}
	if len(actions) > 0 {
		filter = make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			filter[a] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(hot))
	merged := make([]Entry, 0, len(hot)+len(cold))
	for _, e := range hot {
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range cold {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		if filter != nil {
			if _, ok := filter[e.Action]; !ok {
				continue
			}
		}
		merged = append(merged, e)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// CountByAction reports how many of a user's entries carry the action.
func (t *Trail) CountByAction(userID string, action Action) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, entry := range t.byUser[userID] {
		if entry.Action == action {
			count++
		}
	}
	return count
}
