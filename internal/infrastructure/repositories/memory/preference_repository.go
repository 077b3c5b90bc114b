package memory

import (
	"context"
	"sync"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
)

type MemoryPreferenceRepository struct {
	prefs map[domain.UserID]domain.Preferences
	mu    sync.RWMutex
}

func NewMemoryPreferenceRepository() ports.PreferenceRepository {
	return &MemoryPreferenceRepository{
		prefs: make(map[domain.UserID]domain.Preferences),
	}
}

func (r *MemoryPreferenceRepository) Get(ctx context.Context, userID domain.UserID) (domain.Preferences, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prefs[userID]
	if !ok {
		return nil, false, nil
	}
	return domain.Preferences{}.Merge(p), true, nil
}

func (r *MemoryPreferenceRepository) Save(ctx context.Context, prefs *domain.UserPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs[prefs.UserID] = domain.Preferences{}.Merge(prefs.Preferences)
	return nil
}
