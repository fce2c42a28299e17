package privacy

import (
	"context"
	"sync"

	"github.com/mintelli/mintelli/internal/platform/httpx"
)

// ProfileRepository persists privacy profiles.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Save(ctx context.Context, profile Profile) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// MemoryRepository is an in-memory ProfileRepository used by tests and by
// the worker's dry-run mode.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]Profile)}
}

// Get returns a deep copy so callers cannot mutate stored state.
func (r *MemoryRepository) Get(_ context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, httpx.ErrNotFound
	}
	return cloneProfile(p), nil
}

// Save stores a deep copy of the profile.
func (r *MemoryRepository) Save(_ context.Context, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

// ListUserIDs returns every user with a stored profile, in no fixed order.
func (r *MemoryRepository) ListUserIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

func cloneProfile(p Profile) Profile {
	out := p
	out.Permissions = make(map[string]Setting, len(p.Permissions))
	for id, s := range p.Permissions {
		out.Permissions[id] = cloneSetting(s)
	}
	return out
}

func cloneSetting(s Setting) Setting {
	out := s
	out.AccessTypes = make(map[AccessType]struct{}, len(s.AccessTypes))
	for t := range s.AccessTypes {
		out.AccessTypes[t] = struct{}{}
	}
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}
