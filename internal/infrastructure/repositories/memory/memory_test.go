package memory

import (
	"testing"

	"sprinta/internal/core/ports"
	"sprinta/internal/infrastructure/repositories/repotest"
)

func TestMemoryNotificationRepository(t *testing.T) {
	repotest.NotificationRepository(t, func(t *testing.T) ports.NotificationRepository {
		return NewMemoryNotificationRepository()
	})
}

func TestMemoryPreferenceRepository(t *testing.T) {
	repotest.PreferenceRepository(t, func(t *testing.T) ports.PreferenceRepository {
		return NewMemoryPreferenceRepository()
	})
}
