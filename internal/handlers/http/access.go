package http

import (
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/services"
	"sprinta/internal/infrastructure/middleware"
	"sprinta/pkg/errors"
	"sprinta/pkg/validation"

	"github.com/gin-gonic/gin"
)

// NotificationMetrics is the slice of the Prometheus collector the REST
// handlers report to.
type NotificationMetrics interface {
	NotificationCreated(t domain.NotificationType)
	NotificationSkipped(t domain.NotificationType)
}

// StreamMetrics is the slice of the Prometheus collector the stream
// handlers report to.
type StreamMetrics interface {
	StreamOpened(transport string)
	StreamClosed(transport string, lifetime time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) NotificationCreated(domain.NotificationType) {}
func (nopMetrics) NotificationSkipped(domain.NotificationType) {}
func (nopMetrics) StreamOpened(string)                         {}
func (nopMetrics) StreamClosed(string, time.Duration)          {}

// accessControl enforces per-user scoping when auth is on. A nil auth
// service means auth is disabled and every request is allowed.
type accessControl struct {
	auth services.AuthService
}

func (a accessControl) authorize(c *gin.Context, userID domain.UserID) error {
	if a.auth == nil {
		return nil
	}
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return errors.NewUnauthorizedError("authorization token required")
	}
	if err := a.auth.Authorize(claims, userID); err != nil {
		return middleware.ToAppError(err)
	}
	return nil
}

// userIDParam validates a userId taken from the query or a body.
func userIDParam(raw string) (domain.UserID, error) {
	if raw == "" {
		return "", errors.NewMissingParameterError("userId")
	}
	if err := validation.ValidateUserID(raw); err != nil {
		return "", errors.NewInvalidInputError(err.Error()).WithContext("parameter", "userId")
	}
	return domain.UserID(raw), nil
}
