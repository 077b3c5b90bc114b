package domain

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMissingUserID        = errors.New("user id required")
	ErrInvalidNotification  = errors.New("invalid notification")
	ErrChannelClosed        = errors.New("channel closed")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrNotificationDisabled = errors.New("notification disabled by user")
)
