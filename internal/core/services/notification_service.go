package services

import (
	"context"
	"fmt"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/pkg/cache"
	"sprinta/pkg/logger"
	"sprinta/pkg/utils"

	"go.uber.org/zap"
)

type notificationService struct {
	notifications ports.NotificationRepository
	preferences   ports.PreferenceRepository
	dispatcher    ports.Dispatcher
	prefCache     *cache.Cache[domain.UserID, domain.Preferences]
	log           *logger.ContextLogger
}

// NotificationService is the producer path plus the read/modify operations
// behind the REST API. Every mutation that changes a user's badge pushes a
// fresh unread_count to that user's live channels.
type NotificationService interface {
	ports.NotificationService
	// RefreshUnreadCounts recomputes and pushes the badge for each user.
	RefreshUnreadCounts(ctx context.Context, users []domain.UserID) int
	// InvalidatePreferences drops cached preferences after an external change.
	InvalidatePreferences()
}

// NewNotificationService wires the service. prefCache may be nil, in which
// case preferences are read from the repository every time.
func NewNotificationService(
	notifications ports.NotificationRepository,
	preferences ports.PreferenceRepository,
	dispatcher ports.Dispatcher,
	prefCache *cache.Cache[domain.UserID, domain.Preferences],
	log *zap.SugaredLogger,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		preferences:   preferences,
		dispatcher:    dispatcher,
		prefCache:     prefCache,
		log:           logger.NewContextLogger(log),
	}
}

func (s *notificationService) Create(ctx context.Context, input domain.NotificationInput) (*domain.CreateResult, error) {
	input.Title = utils.SanitizeString(input.Title)
	input.Message = utils.SanitizeString(input.Message)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	prefs, err := s.GetPreferences(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !prefs.Allows(input.Type) {
		s.log.For(ctx).Debugw("Notification skipped by user preferences",
			"user_id", input.UserID,
			"type", input.Type,
		)
		return &domain.CreateResult{Skipped: true}, nil
	}

	n := &domain.Notification{
		UserID:   input.UserID,
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Metadata: input.Metadata,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	delivered := s.dispatcher.DispatchToUser(ctx, n.UserID, n)
	s.pushUnreadCount(ctx, n.UserID)

	s.log.For(ctx).Infow("Notification created",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", n.Type,
		"title", utils.TruncateString(n.Title, 40),
		"delivered", delivered,
	)

	return &domain.CreateResult{Notification: n, Delivered: delivered}, nil
}

func (s *notificationService) Get(ctx context.Context, id domain.NotificationID) (*domain.Notification, error) {
	return s.notifications.GetByID(ctx, id)
}

func (s *notificationService) List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	if filter.UserID == "" {
		return nil, domain.ErrMissingUserID
	}
	return s.notifications.List(ctx, filter)
}

func (s *notificationService) MarkRead(ctx context.Context, id domain.NotificationID, read bool) (*domain.Notification, error) {
	n, err := s.notifications.SetRead(ctx, id, read)
	if err != nil {
		return nil, err
	}
	s.pushUnreadCount(ctx, n.UserID)
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingUserID
	}
	marked, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.dispatcher.DispatchUnreadCount(ctx, userID, 0)
	return marked, nil
}

func (s *notificationService) Delete(ctx context.Context, id domain.NotificationID) error {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.notifications.Delete(ctx, id); err != nil {
		return err
	}
	if !n.Read {
		s.pushUnreadCount(ctx, n.UserID)
	}
	return nil
}

func (s *notificationService) DeleteAll(ctx context.Context, userID domain.UserID) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingUserID
	}
	deleted, err := s.notifications.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.dispatcher.DispatchUnreadCount(ctx, userID, 0)
	return deleted, nil
}

// UnreadCount counts unread notifications outside the messages category.
func (s *notificationService) UnreadCount(ctx context.Context, userID domain.UserID) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingUserID
	}
	unread, err := s.notifications.List(ctx, domain.NotificationFilter{UserID: userID, UnreadOnly: true})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range unread {
		if domain.CountsAsUnread(n.Type) {
			count++
		}
	}
	return count, nil
}

func (s *notificationService) GetPreferences(ctx context.Context, userID domain.UserID) (*domain.UserPreferences, error) {
	if userID == "" {
		return nil, domain.ErrMissingUserID
	}

	load := func(ctx context.Context) (domain.Preferences, error) {
		stored, _, err := s.preferences.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
		return domain.DefaultPreferences().Merge(stored), nil
	}

	var prefs domain.Preferences
	var err error
	if s.prefCache != nil {
		prefs, err = s.prefCache.GetOrLoad(ctx, userID, load)
	} else {
		prefs, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &domain.UserPreferences{UserID: userID, Preferences: domain.Preferences{}.Merge(prefs)}, nil
}

func (s *notificationService) SavePreferences(ctx context.Context, userID domain.UserID, prefs domain.Preferences) (*domain.UserPreferences, error) {
	if userID == "" {
		return nil, domain.ErrMissingUserID
	}

	current, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := &domain.UserPreferences{
		UserID:      userID,
		Preferences: current.Preferences.Merge(prefs),
	}
	if err := s.preferences.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	if s.prefCache != nil {
		s.prefCache.Delete(userID)
	}

	s.log.For(ctx).Infow("Preferences updated", "user_id", userID)
	return merged, nil
}

func (s *notificationService) RefreshUnreadCounts(ctx context.Context, users []domain.UserID) int {
	pushed := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		if s.pushUnreadCount(ctx, userID) {
			pushed++
		}
	}
	return pushed
}

func (s *notificationService) InvalidatePreferences() {
	if s.prefCache != nil {
		s.prefCache.Clear()
	}
}

// pushUnreadCount reports whether a count was computed and sent. Errors are
// logged, not returned.
func (s *notificationService) pushUnreadCount(ctx context.Context, userID domain.UserID) bool {
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		s.log.For(ctx).Warnw("Failed to compute unread count",
			"user_id", userID,
			"error", err,
		)
		return false
	}
	s.dispatcher.DispatchUnreadCount(ctx, userID, count)
	return true
}
