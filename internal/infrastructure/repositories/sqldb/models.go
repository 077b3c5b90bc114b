package sqldb

import (
	"time"

	"sprinta/internal/core/domain"

	"gorm.io/datatypes"
)

type notificationRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	UserID    string `gorm:"type:varchar(64);index:idx_notifications_user_created,priority:1;not null"`
	Type      string `gorm:"type:varchar(64);not null"`
	Title     string `gorm:"not null"`
	Message   string `gorm:"not null"`
	Metadata  datatypes.JSONMap
	Read      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_notifications_user_created,priority:2;not null"`
}

func (notificationRow) TableName() string { return "notifications" }

func rowFromNotification(n *domain.Notification) *notificationRow {
	row := &notificationRow{
		ID:        int64(n.ID),
		UserID:    string(n.UserID),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(n.Metadata)
	}
	return row
}

func (r *notificationRow) toDomain() *domain.Notification {
	n := &domain.Notification{
		ID:        domain.NotificationID(r.ID),
		UserID:    domain.UserID(r.UserID),
		Type:      domain.NotificationType(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		n.Metadata = map[string]interface{}(r.Metadata)
	}
	return n
}

type preferenceRow struct {
	UserID      string `gorm:"primaryKey;type:varchar(64)"`
	Preferences datatypes.JSONType[map[string]bool]
	UpdatedAt   time.Time
}

func (preferenceRow) TableName() string { return "notification_preferences" }
