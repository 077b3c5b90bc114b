package memory

import (
	"context"
	"sync"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
)

type MemoryNotificationRepository struct {
	notifications map[domain.NotificationID]*domain.Notification
	lastID        domain.NotificationID
	mu            sync.RWMutex
}

func NewMemoryNotificationRepository() ports.NotificationRepository {
	return &MemoryNotificationRepository{
		notifications: make(map[domain.NotificationID]*domain.Notification),
	}
}

func (r *MemoryNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	n.ID = domain.NextNotificationID(now, r.lastID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	r.lastID = n.ID
	r.notifications[n.ID] = n.Clone()
	return nil
}

func (r *MemoryNotificationRepository) GetByID(ctx context.Context, id domain.NotificationID) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifications[id]
	if !exists {
		return nil, domain.ErrNotificationNotFound
	}
	return n.Clone(), nil
}

func (r *MemoryNotificationRepository) List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
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

func (r *MemoryNotificationRepository) SetRead(ctx context.Context, id domain.NotificationID, read bool) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.notifications[id]
	if !exists {
		return nil, domain.ErrNotificationNotFound
	}
	n.Read = read
	return n.Clone(), nil
}

func (r *MemoryNotificationRepository) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			marked++
		}
	}
	return marked, nil
}

func (r *MemoryNotificationRepository) Delete(ctx context.Context, id domain.NotificationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifications[id]; !exists {
		return domain.ErrNotificationNotFound
	}
	delete(r.notifications, id)
	return nil
}

func (r *MemoryNotificationRepository) DeleteAllForUser(ctx context.Context, userID domain.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, n := range r.notifications {
		if n.UserID == userID {
			delete(r.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}
