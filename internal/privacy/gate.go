package privacy

import (
	"context"
	"errors"
	"time"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/platform/httpx"
)

// CheckRecorder receives the outcome of every permission check, for metrics.
type CheckRecorder interface {
	RecordPermissionCheck(category string, granted bool)
}

// Gate answers permission checks against stored profiles. Every check is a
// pure read: an expired permission denies access but is not demoted here,
// that is the cleanup job's responsibility.
type Gate struct {
	repo     ProfileRepository
	trail    *audit.Trail
	clock    func() time.Time
	recorder CheckRecorder
}

// NewGate wires an access gate.
func NewGate(repo ProfileRepository, trail *audit.Trail) *Gate {
	return &Gate{
		repo:  repo,
		trail: trail,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// WithRecorder registers a metrics hook.
func (g *Gate) WithRecorder(rec CheckRecorder) *Gate {
	g.recorder = rec
	return g
}

// Check reports whether the user may perform the access on the category.
// A missing profile or setting denies. Granted checks are logged to the
// audit trail when logAccess is set; denials are never logged as access.
func (g *Gate) Check(ctx context.Context, userID, categoryID string, access AccessType, logAccess bool) (bool, error) {
	granted, setting, err := g.evaluate(ctx, userID, categoryID, access)
	if err != nil {
		return false, err
	}
	if g.recorder != nil {
		g.recorder.RecordPermissionCheck(categoryID, granted)
	}
	if granted && logAccess {
		g.trail.Record(audit.Entry{
			UserID:     userID,
			Action:     audit.ActionDataAccessed,
			CategoryID: categoryID,
			Details: map[string]any{
				"access_type":      string(access),
				"permission_level": string(setting.Level),
				"granted":          true,
			},
		})
	}
	return granted, nil
}

// CheckWithProfile evaluates against an already-loaded profile, avoiding a
// repository round trip per category during filtering.
func (g *Gate) CheckWithProfile(profile Profile, categoryID string, access AccessType, logAccess bool) bool {
	granted, setting := evaluateSetting(profile, categoryID, access, g.clock())
	if g.recorder != nil {
		g.recorder.RecordPermissionCheck(categoryID, granted)
	}
	if granted && logAccess {
		g.trail.Record(audit.Entry{
			UserID:     profile.UserID,
			Action:     audit.ActionDataAccessed,
			CategoryID: categoryID,
			Details: map[string]any{
				"access_type":      string(access),
				"permission_level": string(setting.Level),
				"granted":          true,
			},
		})
	}
	return granted
}

func (g *Gate) evaluate(ctx context.Context, userID, categoryID string, access AccessType) (bool, Setting, error) {
	profile, err := g.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return false, Setting{}, nil
		}
		return false, Setting{}, err
	}
	granted, setting := evaluateSetting(profile, categoryID, access, g.clock())
	return granted, setting, nil
}

func evaluateSetting(profile Profile, categoryID string, access AccessType, now time.Time) (bool, Setting) {
	setting, ok := profile.Permissions[categoryID]
	if !ok {
		return false, Setting{}
	}
	if setting.Expired(now) {
		return false, setting
	}
	if setting.Level == LevelNone {
		return false, setting
	}
	if setting.Level == LevelAdmin {
		return true, setting
	}
	return setting.Allows(access), setting
}
