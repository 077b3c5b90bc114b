package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateRequestID returns a compact request id for X-Request-ID.
func GenerateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// GenerateID returns prefix_<uuid>.
func GenerateID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}
