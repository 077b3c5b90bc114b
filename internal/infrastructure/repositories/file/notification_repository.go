package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"sprinta/internal/core/domain"

	"go.uber.org/zap"
)

// FileNotificationRepository keeps notifications in a JSON array on disk and
// an in-memory copy for reads. Every mutation rewrites the file, except while
// the file on disk fails to decode: reads then serve the last good copy and
// writes fail with ErrUnreadableFile.
type FileNotificationRepository struct {
	path   string
	logger *zap.SugaredLogger

	mu            sync.RWMutex
	notifications []*domain.Notification
	lastID        domain.NotificationID
	digest        digest
	unreadable    error
}

func NewFileNotificationRepository(dir string, logger *zap.SugaredLogger) (*FileNotificationRepository, error) {
	r := &FileNotificationRepository{
		path:   filepath.Join(dir, NotificationsFile),
		logger: logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileNotificationRepository) Path() string {
	return r.path
}

// Reload replaces the in-memory copy with the file contents. A file that does
// not decode is logged and leaves the repository read-only until it does.
func (r *FileNotificationRepository) Reload() error {
	_, err := r.reload(true)
	return err
}

// ReloadIfChanged reloads only when the file differs from what this
// repository last read or wrote.
func (r *FileNotificationRepository) ReloadIfChanged() (bool, error) {
	return r.reload(false)
}

func (r *FileNotificationRepository) reload(force bool) (bool, error) {
	data, sum, err := readFile(r.path)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && sum == r.digest {
		return false, nil
	}

	var list []*domain.Notification
	if err := decodeJSON(r.path, data, &list); err != nil {
		r.logger.Errorw("Notifications file unreadable, writes suspended",
			"path", r.path,
			"kept_records", len(r.notifications),
			"error", err,
		)
		r.unreadable = fmt.Errorf("%w: %v", ErrUnreadableFile, err)
		return false, nil
	}

	r.notifications = list
	r.digest = sum
	r.unreadable = nil
	for _, n := range list {
		if n.ID > r.lastID {
			r.lastID = n.ID
		}
	}
	return true, nil
}

func (r *FileNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	n.ID = domain.NextNotificationID(now, r.lastID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}

	next := append(r.notifications[:len(r.notifications):len(r.notifications)], n.Clone())
	if err := r.persistLocked(next); err != nil {
		return err
	}
	r.lastID = n.ID
	return nil
}

func (r *FileNotificationRepository) GetByID(ctx context.Context, id domain.NotificationID) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.notifications[i].Clone(), nil
	}
	return nil, domain.ErrNotificationNotFound
}

func (r *FileNotificationRepository) List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*domain.Notification, 0, len(r.notifications))
	for _, n := range r.notifications {
		if filter.Matches(n) {
			list = append(list, n.Clone())
		}
	}
	return filter.Apply(list), nil
}

func (r *FileNotificationRepository) SetRead(ctx context.Context, id domain.NotificationID, read bool) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return nil, domain.ErrNotificationNotFound
	}

	next := r.copyLocked()
	updated := next[i].Clone()
	updated.Read = read
	next[i] = updated
	if err := r.persistLocked(next); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

func (r *FileNotificationRepository) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	marked := 0
	for i, n := range next {
		if n.UserID == userID && !n.Read {
			updated := n.Clone()
			updated.Read = true
			next[i] = updated
			marked++
		}
	}
	if marked == 0 {
		return 0, nil
	}
	if err := r.persistLocked(next); err != nil {
		return 0, err
	}
	return marked, nil
}

func (r *FileNotificationRepository) Delete(ctx context.Context, id domain.NotificationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return domain.ErrNotificationNotFound
	}

	next := make([]*domain.Notification, 0, len(r.notifications)-1)
	next = append(next, r.notifications[:i]...)
	next = append(next, r.notifications[i+1:]...)
	return r.persistLocked(next)
}

func (r *FileNotificationRepository) DeleteAllForUser(ctx context.Context, userID domain.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*domain.Notification, 0, len(r.notifications))
	for _, n := range r.notifications {
		if n.UserID != userID {
			next = append(next, n)
		}
	}
	deleted := len(r.notifications) - len(next)
	if deleted == 0 {
		return 0, nil
	}
	if err := r.persistLocked(next); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *FileNotificationRepository) indexLocked(id domain.NotificationID) int {
	for i, n := range r.notifications {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (r *FileNotificationRepository) copyLocked() []*domain.Notification {
	return append([]*domain.Notification(nil), r.notifications...)
}

// persistLocked writes next to disk and only then makes it the current state.
func (r *FileNotificationRepository) persistLocked(next []*domain.Notification) error {
	if r.unreadable != nil {
		return r.unreadable
	}
	if next == nil {
		next = []*domain.Notification{}
	}
	sum, err := writeJSON(r.path, next)
	if err != nil {
		return err
	}
	r.notifications = next
	r.digest = sum
	return nil
}
