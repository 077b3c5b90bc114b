package ports

import (
	"context"

	"sprinta/internal/core/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id domain.NotificationID) (*domain.Notification, error)
	List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error)
	SetRead(ctx context.Context, id domain.NotificationID, read bool) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID domain.UserID) (int, error)
	Delete(ctx context.Context, id domain.NotificationID) error
	DeleteAllForUser(ctx context.Context, userID domain.UserID) (int, error)
}

type PreferenceRepository interface {
	// Get returns found=false when nothing was stored for the user.
	Get(ctx context.Context, userID domain.UserID) (domain.Preferences, bool, error)
	Save(ctx context.Context, prefs *domain.UserPreferences) error
}
