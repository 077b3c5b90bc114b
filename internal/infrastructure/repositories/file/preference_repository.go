package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"sprinta/internal/core/domain"

	"go.uber.org/zap"
)

type FilePreferenceRepository struct {
	path   string
	logger *zap.SugaredLogger

	mu         sync.RWMutex
	prefs      []domain.UserPreferences
	digest     digest
	unreadable error
}

func NewFilePreferenceRepository(dir string, logger *zap.SugaredLogger) (*FilePreferenceRepository, error) {
	r := &FilePreferenceRepository{
		path:   filepath.Join(dir, PreferencesFile),
		logger: logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FilePreferenceRepository) Path() string {
	return r.path
}

func (r *FilePreferenceRepository) Reload() error {
	_, err := r.reload(true)
	return err
}

func (r *FilePreferenceRepository) ReloadIfChanged() (bool, error) {
	return r.reload(false)
}

func (r *FilePreferenceRepository) reload(force bool) (bool, error) {
	data, sum, err := readFile(r.path)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && sum == r.digest {
		return false, nil
	}

	var prefs []domain.UserPreferences
	if err := decodeJSON(r.path, data, &prefs); err != nil {
		r.logger.Errorw("Preferences file unreadable, writes suspended",
			"path", r.path,
			"error", err,
		)
		r.unreadable = fmt.Errorf("%w: %v", ErrUnreadableFile, err)
		return false, nil
	}
	r.prefs = prefs
	r.digest = sum
	r.unreadable = nil
	return true, nil
}

func (r *FilePreferenceRepository) Get(ctx context.Context, userID domain.UserID) (domain.Preferences, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.prefs {
		if p.UserID == userID {
			return domain.Preferences{}.Merge(p.Preferences), true, nil
		}
	}
	return nil, false, nil
}

func (r *FilePreferenceRepository) Save(ctx context.Context, prefs *domain.UserPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unreadable != nil {
		return r.unreadable
	}

	entry := domain.UserPreferences{
		UserID:      prefs.UserID,
		Preferences: domain.Preferences{}.Merge(prefs.Preferences),
	}

	next := make([]domain.UserPreferences, 0, len(r.prefs)+1)
	replaced := false
	for _, p := range r.prefs {
		if p.UserID == prefs.UserID {
			next = append(next, entry)
			replaced = true
			continue
		}
		next = append(next, p)
	}
	if !replaced {
		next = append(next, entry)
	}

	sum, err := writeJSON(r.path, next)
	if err != nil {
		return err
	}
	r.prefs = next
	r.digest = sum
	return nil
}
