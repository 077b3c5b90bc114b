package redis

import (
	"fmt"

	"sprinta/internal/core/domain"
)

const keyPrefix = "sprinta:"

func notificationKey(id domain.NotificationID) string {
	return fmt.Sprintf("%snotification:%d", keyPrefix, id)
}

// userIndexKey is a sorted set of notification ids scored by creation time.
func userIndexKey(userID domain.UserID) string {
	return keyPrefix + "user:" + string(userID) + ":notifications"
}

func preferencesKey(userID domain.UserID) string {
	return keyPrefix + "preferences:" + string(userID)
}

const (
	globalIndexKey = keyPrefix + "notifications"
	lastIDKey      = keyPrefix + "notification:last_id"
)

// Collection names reported on store spans.
const (
	notificationsCollection = "notifications"
	preferencesCollection   = "preferences"
)
