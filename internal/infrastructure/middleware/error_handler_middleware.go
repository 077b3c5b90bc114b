package middleware

import (
	stderrors "errors"
	"net/http"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/services"
	"sprinta/pkg/errors"
	"sprinta/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToAppError maps domain and auth sentinels to their HTTP form. Anything
// unrecognised becomes a storage error.
func ToAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}
	switch {
	case stderrors.Is(err, domain.ErrNotificationNotFound):
		return errors.NewNotFoundError("notification")
	case stderrors.Is(err, domain.ErrMissingUserID):
		return errors.NewMissingParameterError("userId")
	case stderrors.Is(err, domain.ErrInvalidNotification):
		return errors.NewInvalidInputError("userId, type, title and message are required")
	case stderrors.Is(err, services.ErrExpiredToken):
		return errors.NewUnauthorizedError("token expired")
	case stderrors.Is(err, services.ErrInvalidToken):
		return errors.NewUnauthorizedError("invalid token")
	case stderrors.Is(err, services.ErrForbidden):
		return errors.NewForbiddenError("not allowed to access this user's notifications")
	}
	return errors.NewStorageError(err)
}

// ErrorHandlerMiddleware renders the last error attached with c.Error as
// {error, message, details}. Responses that already started (streams) are
// left alone.
func ErrorHandlerMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	cl := logger.NewContextLogger(log)
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := ToAppError(err)

		fields := []interface{}{
			"code", appErr.Code,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		}
		l := cl.For(c.Request.Context())
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			l.Errorw("Request failed", append(fields, "error", err)...)
		} else {
			l.Debugw("Request rejected", append(fields, "message", appErr.Message)...)
		}

		if c.Writer.Written() {
			return
		}

		body := gin.H{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware turns panics into 500 responses.
func RecoveryMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	cl := logger.NewContextLogger(log)
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				cl.For(c.Request.Context()).Errorw("Panic recovered",
					"panic", rec,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{
						"error":   string(errors.ErrCodeInternal),
						"message": "Internal server error",
					})
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
