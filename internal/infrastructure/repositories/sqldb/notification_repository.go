package sqldb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/pkg/tracing"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type SQLNotificationRepository struct {
	db *gorm.DB
	// serialises id allocation within this process; the primary key catches
	// collisions with other instances
	idMu sync.Mutex
}

func NewSQLNotificationRepository(db *gorm.DB) ports.NotificationRepository {
	return &SQLNotificationRepository{db: db}
}

func (r *SQLNotificationRepository) trace(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracing.TraceDatabaseOperation(ctx, r.db.Dialector.Name(), op, notificationRow{}.TableName())
}

const maxIDAttempts = 3

func (r *SQLNotificationRepository) Create(ctx context.Context, n *domain.Notification) (err error) {
	ctx, span := r.trace(ctx, "insert")
	defer tracing.EndOperation(span, &err)

	r.idMu.Lock()
	defer r.idMu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}

	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last int64
			if err := tx.Model(&notificationRow{}).Select("COALESCE(MAX(id), 0)").Scan(&last).Error; err != nil {
				return err
			}
			n.ID = domain.NextNotificationID(now, domain.NotificationID(last))
			return tx.Create(rowFromNotification(n)).Error
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	return fmt.Errorf("failed to insert notification: %w", lastErr)
}

func (r *SQLNotificationRepository) GetByID(ctx context.Context, id domain.NotificationID) (_ *domain.Notification, err error) {
	ctx, span := r.trace(ctx, "select")
	defer tracing.EndOperation(span, &err, domain.ErrNotificationNotFound)

	var row notificationRow
	err = r.db.WithContext(ctx).First(&row, "id = ?", int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SQLNotificationRepository) List(ctx context.Context, filter domain.NotificationFilter) (_ []*domain.Notification, err error) {
	ctx, span := r.trace(ctx, "select")
	defer tracing.EndOperation(span, &err)

	q := r.db.WithContext(ctx).Model(&notificationRow{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", string(filter.UserID))
	}
	if filter.UnreadOnly {
		q = q.Where("read = ?", false)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	q = q.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []notificationRow
	if err = q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*domain.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *SQLNotificationRepository) SetRead(ctx context.Context, id domain.NotificationID, read bool) (_ *domain.Notification, err error) {
	ctx, span := r.trace(ctx, "update")
	defer tracing.EndOperation(span, &err, domain.ErrNotificationNotFound)

	res := r.db.WithContext(ctx).Model(&notificationRow{}).Where("id = ?", int64(id)).Update("read", read)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update notification: %w", res.Error)
	}
	// RowsAffected cannot tell "unknown id" from "unchanged" on every
	// driver, so the lookup decides.
	return r.GetByID(ctx, id)
}

func (r *SQLNotificationRepository) MarkAllRead(ctx context.Context, userID domain.UserID) (_ int, err error) {
	ctx, span := r.trace(ctx, "update")
	defer tracing.EndOperation(span, &err)

	res := r.db.WithContext(ctx).Model(&notificationRow{}).
		Where("user_id = ? AND read = ?", string(userID), false).
		Update("read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *SQLNotificationRepository) Delete(ctx context.Context, id domain.NotificationID) (err error) {
	ctx, span := r.trace(ctx, "delete")
	defer tracing.EndOperation(span, &err, domain.ErrNotificationNotFound)

	res := r.db.WithContext(ctx).Delete(&notificationRow{}, "id = ?", int64(id))
	if res.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *SQLNotificationRepository) DeleteAllForUser(ctx context.Context, userID domain.UserID) (_ int, err error) {
	ctx, span := r.trace(ctx, "delete")
	defer tracing.EndOperation(span, &err)

	res := r.db.WithContext(ctx).Delete(&notificationRow{}, "user_id = ?", string(userID))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
