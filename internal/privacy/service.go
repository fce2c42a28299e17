package privacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/platform/httpx"
)

// Invalidator bumps downstream caches after a user's permissions change.
type Invalidator interface {
	Bump(ctx context.Context, userID string) error
}

// PermissionUpdate is one requested change to a category's permission.
// Either Grant is set (shorthand for full grant or full revoke) or the
// structured fields are.
type PermissionUpdate struct {
	Grant       *bool        `json:"grant,omitempty"`
	Level       Level        `json:"level,omitempty"`
	AccessTypes []AccessType `json:"access_types,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// Service manages privacy profiles and records every consent-relevant
// mutation in the audit trail.
type Service struct {
	repo        ProfileRepository
	trail       *audit.Trail
	logger      *slog.Logger
	locks       *userLocks
	clock       func() time.Time
	invalidator Invalidator
}

// NewService wires a privacy service.
func NewService(repo ProfileRepository, trail *audit.Trail, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		trail:  trail,
		logger: logger,
		locks:  newUserLocks(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithInvalidator registers a cache invalidation hook run after every
// permission mutation.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.invalidator = inv
	return s
}

// GetOrCreateProfile returns the user's profile, creating one with default
// permissions on first contact. Creation is recorded as consent.
func (s *Service) GetOrCreateProfile(ctx context.Context, userID string) (Profile, error) {
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.getOrCreateLocked(ctx, userID)
}

func (s *Service) getOrCreateLocked(ctx context.Context, userID string) (Profile, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, httpx.ErrNotFound) {
		return Profile{}, err
	}

	now := s.clock()
	profile = Profile{
		UserID:           userID,
		Permissions:      make(map[string]Setting, len(registry)),
		PrivacyLevel:     PrivacyStandard,
		DataMinimization: true,
		ConsentTimestamp: now,
		LastUpdated:      now,
	}
	for _, cat := range registry {
		profile.Permissions[cat.ID] = DefaultSetting(cat, now)
	}
	if err := s.repo.Save(ctx, profile); err != nil {
		return Profile{}, err
	}

	s.trail.Record(audit.Entry{
		UserID: userID,
		Action: audit.ActionConsentGiven,
		Details: map[string]any{
			"initial_setup":     true,
			"permissions_count": len(profile.Permissions),
		},
	})
	s.logger.Info("privacy profile created", "user_id", userID, "categories", len(profile.Permissions))
	return profile, nil
}

// UpdatePermissions applies the requested changes and audits old versus new
// state. Unknown categories are skipped with a warning rather than failing
// the whole batch.
func (s *Service) UpdatePermissions(ctx context.Context, userID string, updates map[string]PermissionUpdate) (Profile, error) {
	if len(updates) == 0 {
		return Profile{}, fmt.Errorf("%w: no permission updates supplied", httpx.ErrValidation)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	now := s.clock()
	oldState := make(map[string]any)
	newState := make(map[string]any)
	applied := 0

	for categoryID, update := range updates {
		cat, ok := CategoryByID(categoryID)
		if !ok {
			s.logger.Warn("unknown permission category skipped", "user_id", userID, "category", categoryID)
			continue
		}
		next, err := normalizeUpdate(cat, update, now)
		if err != nil {
			return Profile{}, err
		}
		if prev, ok := profile.Permissions[categoryID]; ok {
			oldState[categoryID] = describeSetting(prev)
			next.GrantedAt = prev.GrantedAt
			if prev.Level == LevelNone && next.Level != LevelNone {
				next.GrantedAt = now
			}
		} else {
			next.GrantedAt = now
		}
		profile.Permissions[categoryID] = next
		newState[categoryID] = describeSetting(next)
		applied++
	}

	if applied == 0 {
		return Profile{}, fmt.Errorf("%w: no recognised categories in update", httpx.ErrValidation)
	}

	profile.LastUpdated = now
	if err := s.repo.Save(ctx, profile); err != nil {
		return Profile{}, err
	}

	s.trail.Record(audit.Entry{
		UserID: userID,
		Action: audit.ActionPermissionChanged,
		Details: map[string]any{
			"old_permissions": oldState,
			"new_permissions": newState,
		},
	})
	s.bump(ctx, userID)
	return profile, nil
}

// UpdateSettings changes the coarse privacy level and the data minimization
// toggle.
func (s *Service) UpdateSettings(ctx context.Context, userID string, level PrivacyLevel, minimization *bool) (Profile, error) {
	switch level {
	case PrivacyBasic, PrivacyStandard, PrivacyStrict, "":
	default:
		return Profile{}, fmt.Errorf("%w: unknown privacy level %q", httpx.ErrValidation, level)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	details := map[string]any{}
	if level != "" && level != profile.PrivacyLevel {
		details["privacy_level"] = map[string]any{"old": profile.PrivacyLevel, "new": level}
		profile.PrivacyLevel = level
	}
	if minimization != nil && *minimization != profile.DataMinimization {
		details["data_minimization"] = map[string]any{"old": profile.DataMinimization, "new": *minimization}
		profile.DataMinimization = *minimization
	}
	if len(details) == 0 {
		return profile, nil
	}

	profile.LastUpdated = s.clock()
	if err := s.repo.Save(ctx, profile); err != nil {
		return Profile{}, err
	}
	s.trail.Record(audit.Entry{
		UserID:  userID,
		Action:  audit.ActionPrivacySettingsUpdated,
		Details: details,
	})
	s.bump(ctx, userID)
	return profile, nil
}

// WithdrawConsent revokes every category to None and audits the withdrawal.
func (s *Service) WithdrawConsent(ctx context.Context, userID string) (Profile, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	now := s.clock()
	revoked := make([]string, 0, len(profile.Permissions))
	for id, setting := range profile.Permissions {
		if setting.Level == LevelNone {
			continue
		}
		setting.Level = LevelNone
		setting.AccessTypes = accessSet()
		setting.ExpiresAt = nil
		setting.UpdatedAt = now
		profile.Permissions[id] = setting
		revoked = append(revoked, id)
	}
	profile.LastUpdated = now
	if err := s.repo.Save(ctx, profile); err != nil {
		return Profile{}, err
	}

	s.trail.Record(audit.Entry{
		UserID:  userID,
		Action:  audit.ActionConsentWithdrawn,
		Details: map[string]any{"revoked_categories": revoked},
	})
	s.bump(ctx, userID)
	return profile, nil
}

// CleanupExpired demotes every expired permission across all users to None
// and returns how many settings were demoted.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	userIDs, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, userID := range userIDs {
		n, err := s.cleanupUser(ctx, userID)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		s.logger.Info("expired permissions cleaned up", "count", total)
	}
	return total, nil
}

func (s *Service) cleanupUser(ctx context.Context, userID string) (int, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	now := s.clock()
	expired := make([]string, 0, 2)
	for id, setting := range profile.Permissions {
		if !setting.Expired(now) {
			continue
		}
		setting.Level = LevelNone
		setting.AccessTypes = accessSet()
		setting.ExpiresAt = nil
		setting.UpdatedAt = now
		profile.Permissions[id] = setting
		expired = append(expired, id)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	profile.LastUpdated = now
	if err := s.repo.Save(ctx, profile); err != nil {
		return 0, err
	}
	s.trail.Record(audit.Entry{
		UserID: userID,
		Action: audit.ActionPermissionChanged,
		Details: map[string]any{
			"reason":             "expired",
			"expired_categories": expired,
		},
	})
	s.bump(ctx, userID)
	return len(expired), nil
}

func (s *Service) bump(ctx context.Context, userID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx, userID); err != nil {
		s.logger.Warn("analytics cache bump failed", "user_id", userID, "error", err)
	}
}

// normalizeUpdate converts the request variant into a concrete Setting.
// Grant=true means Full{view,analyze}; Grant=false means None.
func normalizeUpdate(cat Category, update PermissionUpdate, now time.Time) (Setting, error) {
	s := Setting{CategoryID: cat.ID, UpdatedAt: now}
	if update.Grant != nil {
		if *update.Grant {
			s.Level = LevelFull
			s.AccessTypes = accessSet(AccessView, AccessAnalyze)
		} else {
			s.Level = LevelNone
			s.AccessTypes = accessSet()
		}
		return s, nil
	}

	switch update.Level {
	case LevelNone, LevelReadOnly, LevelLimited, LevelFull, LevelAdmin:
		s.Level = update.Level
	default:
		return Setting{}, fmt.Errorf("%w: unknown permission level %q", httpx.ErrValidation, update.Level)
	}
	for _, t := range update.AccessTypes {
		switch t {
		case AccessView, AccessAnalyze, AccessExport, AccessDelete, AccessShare:
		default:
			return Setting{}, fmt.Errorf("%w: unknown access type %q", httpx.ErrValidation, t)
		}
	}
	s.AccessTypes = accessSet(update.AccessTypes...)
	if s.Level == LevelNone {
		s.AccessTypes = accessSet()
	}
	if update.ExpiresAt != nil {
		exp := update.ExpiresAt.UTC()
		s.ExpiresAt = &exp
	}
	return s, nil
}

func describeSetting(s Setting) map[string]any {
	types := make([]string, 0, len(s.AccessTypes))
	for _, t := range []AccessType{AccessView, AccessAnalyze, AccessExport, AccessDelete, AccessShare} {
		if s.Allows(t) {
			types = append(types, string(t))
		}
	}
	out := map[string]any{
		"level":        string(s.Level),
		"access_types": types,
	}
	if s.ExpiresAt != nil {
		out["expires_at"] = s.ExpiresAt.UTC().Format(timeLayout)
	}
	return out
}
