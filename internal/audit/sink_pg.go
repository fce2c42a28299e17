package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink persists audit batches into the audit_entries table.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink returns a sink backed by the provided pool.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// Append inserts the batch in a single round trip.
func (s *PGSink) Append(ctx context.Context, entries []Entry) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: sink not initialised")
	}
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		details, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO audit_entries (id, user_id, action, category_id, details, occurred_at, session_id)
			 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''))
			 ON CONFLICT (id) DO NOTHING`,
			entry.ID, entry.UserID, string(entry.Action), entry.CategoryID,
			details, entry.Timestamp.UTC(), entry.SessionID,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Recent loads a user's most recent persisted entries, newest first.
func (s *PGSink) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("audit: sink not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, action, COALESCE(category_id, ''), details, occurred_at, COALESCE(session_id, '')
		 FROM audit_entries WHERE user_id = $1 ORDER BY occurred_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			action     string
			rawDetails []byte
			occurredAt time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &action, &entry.CategoryID, &rawDetails, &occurredAt, &entry.SessionID); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		entry.Timestamp = occurredAt
		if len(rawDetails) > 0 {
			_ = json.Unmarshal(rawDetails, &entry.Details)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
