package ports

import (
	"context"

	"sprinta/internal/core/domain"
)

type NotificationService interface {
	Create(ctx context.Context, input domain.NotificationInput) (*domain.CreateResult, error)
	Get(ctx context.Context, id domain.NotificationID) (*domain.Notification, error)
	List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID, read bool) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID domain.UserID) (int, error)
	Delete(ctx context.Context, id domain.NotificationID) error
	DeleteAll(ctx context.Context, userID domain.UserID) (int, error)
	UnreadCount(ctx context.Context, userID domain.UserID) (int, error)
	GetPreferences(ctx context.Context, userID domain.UserID) (*domain.UserPreferences, error)
	SavePreferences(ctx context.Context, userID domain.UserID, prefs domain.Preferences) (*domain.UserPreferences, error)
}

// UnreadCounter is what a stream session needs to send the initial badge value.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID domain.UserID) (int, error)
}

// Dispatcher delivers events to the live channels of a user. All methods
// return the number of channels that accepted the write.
type Dispatcher interface {
	DispatchToUser(ctx context.Context, userID domain.UserID, n *domain.Notification) int
	DispatchUnreadCount(ctx context.Context, userID domain.UserID, count int) int
	DispatchEvent(ctx context.Context, userID domain.UserID, name domain.EventName, payload interface{}) int
}

// ConnectionTracker exposes what the registry knows about live connections.
type ConnectionTracker interface {
	Users() []domain.UserID
	Stats() domain.ConnectionStats
}
