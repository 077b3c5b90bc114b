package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxUserIDLength  = 128
	MaxTitleLength   = 200
	MaxMessageLength = 2000
	MaxListLimit     = 500
)

var (
	// UserIDRegex accepts opaque ids from the identity provider: uuids,
	// numeric ids and slugs.
	UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:@-]+$`)

	NotificationTypeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("userId is required")
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("userId is too long (max %d characters)", MaxUserIDLength)
	}
	if !UserIDRegex.MatchString(userID) {
		return fmt.Errorf("userId contains invalid characters")
	}
	return nil
}

// ValidateNotificationType checks the shape only. Unknown types are legal
// and are never filtered by preferences.
func ValidateNotificationType(t string) error {
	if t == "" {
		return fmt.Errorf("type is required")
	}
	if len(t) > 64 || !NotificationTypeRegex.MatchString(t) {
		return fmt.Errorf("invalid notification type %q", t)
	}
	return nil
}

func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength counts runes, not bytes.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s is not valid UTF-8", fieldName)
	}
	n := utf8.RuneCountInString(s)
	if n < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if n > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}

func ValidateTitle(title string) error {
	if err := ValidateNonEmptyString(title, "title"); err != nil {
		return err
	}
	return ValidateStringLength(title, 1, MaxTitleLength, "title")
}

func ValidateMessage(message string) error {
	if err := ValidateNonEmptyString(message, "message"); err != nil {
		return err
	}
	return ValidateStringLength(message, 1, MaxMessageLength, "message")
}

// ParseNotificationID parses a positive decimal id.
func ParseNotificationID(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// ParseLimit returns 0 (no limit) for an empty value and caps at MaxListLimit.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > MaxListLimit {
		n = MaxListLimit
	}
	return n, nil
}

// ParseFlag treats "true" and "1" as set; anything else is false.
func ParseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true
	}
	return false
}
