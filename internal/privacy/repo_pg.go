package privacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintelli/mintelli/internal/platform/httpx"
)

// PGRepository persists privacy profiles in Postgres. The per-category
// settings are stored as a jsonb document alongside the profile row.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wires a Postgres-backed profile repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("privacy: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type settingDoc struct {
	CategoryID  string   `json:"category_id"`
	Level       Level    `json:"level"`
	AccessTypes []string `json:"access_types"`
	GrantedAt   string   `json:"granted_at"`
	UpdatedAt   string   `json:"updated_at"`
	ExpiresAt   *string  `json:"expires_at,omitempty"`
}

// Get loads a profile, mapping a missing row to httpx.ErrNotFound.
func (r *PGRepository) Get(ctx context.Context, userID string) (Profile, error) {
	var (
		p   Profile
		doc []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, permissions, privacy_level, data_minimization, consent_at, updated_at
		FROM privacy_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &doc, &p.PrivacyLevel, &p.DataMinimization, &p.ConsentTimestamp, &p.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, httpx.ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("privacy: load profile: %w", err)
	}
	p.Permissions, err = decodeSettings(doc)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Save upserts the profile row.
func (r *PGRepository) Save(ctx context.Context, profile Profile) error {
	doc, err := encodeSettings(profile.Permissions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO privacy_profiles (user_id, permissions, privacy_level, data_minimization, consent_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			permissions = EXCLUDED.permissions,
			privacy_level = EXCLUDED.privacy_level,
			data_minimization = EXCLUDED.data_minimization,
			updated_at = EXCLUDED.updated_at`,
		profile.UserID, doc, profile.PrivacyLevel, profile.DataMinimization,
		profile.ConsentTimestamp, profile.LastUpdated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return httpx.ErrDuplicate
		}
		return fmt.Errorf("privacy: save profile: %w", err)
	}
	return nil
}

// ListUserIDs returns every user with a stored profile.
func (r *PGRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM privacy_profiles`)
	if err != nil {
		return nil, fmt.Errorf("privacy: list profiles: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("privacy: scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("privacy: iterate profiles: %w", err)
	}
	return ids, nil
}

func encodeSettings(settings map[string]Setting) ([]byte, error) {
	docs := make(map[string]settingDoc, len(settings))
	for id, s := range settings {
		d := settingDoc{
			CategoryID: s.CategoryID,
			Level:      s.Level,
			GrantedAt:  s.GrantedAt.UTC().Format(timeLayout),
			UpdatedAt:  s.UpdatedAt.UTC().Format(timeLayout),
		}
		for t := range s.AccessTypes {
			d.AccessTypes = append(d.AccessTypes, string(t))
		}
		if s.ExpiresAt != nil {
			exp := s.ExpiresAt.UTC().Format(timeLayout)
			d.ExpiresAt = &exp
		}
		docs[id] = d
	}
	out, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("privacy: encode settings: %w", err)
	}
	return out, nil
}

func decodeSettings(doc []byte) (map[string]Setting, error) {
	var docs map[string]settingDoc
	if err := json.Unmarshal(doc, &docs); err != nil {
		return nil, fmt.Errorf("privacy: decode settings: %w", err)
	}
	out := make(map[string]Setting, len(docs))
	for id, d := range docs {
		s := Setting{
			CategoryID:  d.CategoryID,
			Level:       d.Level,
			AccessTypes: make(map[AccessType]struct{}, len(d.AccessTypes)),
		}
		for _, t := range d.AccessTypes {
			s.AccessTypes[AccessType(t)] = struct{}{}
		}
		var err error
		if s.GrantedAt, err = parseTime(d.GrantedAt); err != nil {
			return nil, err
		}
		if s.UpdatedAt, err = parseTime(d.UpdatedAt); err != nil {
			return nil, err
		}
		if d.ExpiresAt != nil {
			exp, err := parseTime(*d.ExpiresAt)
			if err != nil {
				return nil, err
			}
			s.ExpiresAt = &exp
		}
		out[id] = s
	}
	return out, nil
}
