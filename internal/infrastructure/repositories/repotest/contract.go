// Package repotest holds the behaviour every storage driver must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(userID domain.UserID, t domain.NotificationType) *domain.Notification {
	return &domain.Notification{
		UserID:  userID,
		Type:    t,
		Title:   "Title " + string(t),
		Message: "Message for " + string(userID),
	}
}

// AssertSameNotification compares notifications field by field; drivers may
// return a different time.Location for CreatedAt.
func AssertSameNotification(t *testing.T, want, got *domain.Notification) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Message, got.Message)
	assert.Equal(t, want.Read, got.Read)
	assert.Equal(t, len(want.Metadata), len(got.Metadata))
	for k, v := range want.Metadata {
		assert.Equal(t, v, got.Metadata[k], "metadata %q", k)
	}
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", want.CreatedAt, got.CreatedAt)
}

func ids(list []*domain.Notification) []domain.NotificationID {
	out := make([]domain.NotificationID, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

// NotificationRepository runs the shared contract against fresh repositories
// returned by newRepo.
func NotificationRepository(t *testing.T, newRepo func(t *testing.T) ports.NotificationRepository) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		n := newNotification("u1", domain.TypeNewOpportunity)
		n.Metadata = map[string]interface{}{
			"club":   "Stade Rennais",
			"salary": 1200.5,
			"extra":  map[string]interface{}{"level": "N2"},
		}

		require.NoError(t, repo.Create(ctx, n))
		assert.NotZero(t, n.ID)
		assert.False(t, n.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, n.ID)
		require.NoError(t, err)
		AssertSameNotification(t, n, got)

		_, err = repo.GetByID(ctx, n.ID+999)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})

	t.Run("IDsAreUniqueAndIncreasing", func(t *testing.T) {
		repo := newRepo(t)
		var last domain.NotificationID
		for i := 0; i < 5; i++ {
			n := newNotification("u1", domain.TypeNewFollower)
			require.NoError(t, repo.Create(ctx, n))
			assert.Greater(t, n.ID, last)
			last = n.ID
		}
	})

	t.Run("ListFiltersAndOrders", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

		mk := func(userID domain.UserID, typ domain.NotificationType, offset time.Duration) *domain.Notification {
			n := newNotification(userID, typ)
			n.CreatedAt = base.Add(offset)
			require.NoError(t, repo.Create(ctx, n))
			return n
		}
		a := mk("u1", domain.TypeNewFollower, 0)
		b := mk("u1", domain.TypeMessageReceived, time.Minute)
		c := mk("u2", domain.TypeNewFollower, 2*time.Minute)
		d := mk("u1", domain.TypeNewFollower, 3*time.Minute)

		_, err := repo.SetRead(ctx, b.ID, true)
		require.NoError(t, err)

		list, err := repo.List(ctx, domain.NotificationFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, []domain.NotificationID{d.ID, b.ID, a.ID}, ids(list))

		list, err = repo.List(ctx, domain.NotificationFilter{UserID: "u1", UnreadOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []domain.NotificationID{d.ID, a.ID}, ids(list))

		list, err = repo.List(ctx, domain.NotificationFilter{Type: domain.TypeNewFollower})
		require.NoError(t, err)
		assert.Equal(t, []domain.NotificationID{d.ID, c.ID, a.ID}, ids(list))

		list, err = repo.List(ctx, domain.NotificationFilter{UserID: "u1", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []domain.NotificationID{d.ID, b.ID}, ids(list))

		list, err = repo.List(ctx, domain.NotificationFilter{UserID: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("SetRead", func(t *testing.T) {
		repo := newRepo(t)
		n := newNotification("u1", domain.TypeProfileVerified)
		require.NoError(t, repo.Create(ctx, n))

		got, err := repo.SetRead(ctx, n.ID, true)
		require.NoError(t, err)
		assert.True(t, got.Read)

		got, err = repo.SetRead(ctx, n.ID, false)
		require.NoError(t, err)
		assert.False(t, got.Read)

		_, err = repo.SetRead(ctx, n.ID+999, true)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})

	t.Run("MarkAllRead", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Create(ctx, newNotification("u1", domain.TypeNewFollower)))
		}
		other := newNotification("u2", domain.TypeNewFollower)
		require.NoError(t, repo.Create(ctx, other))

		marked, err := repo.MarkAllRead(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, marked)

		marked, err = repo.MarkAllRead(ctx, "u1")
		require.NoError(t, err)
		assert.Zero(t, marked)

		got, err := repo.GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, got.Read)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		n := newNotification("u1", domain.TypeNewFollower)
		require.NoError(t, repo.Create(ctx, n))

		require.NoError(t, repo.Delete(ctx, n.ID))
		_, err := repo.GetByID(ctx, n.ID)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, n.ID), domain.ErrNotificationNotFound)
	})

	t.Run("DeleteAllForUser", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 2; i++ {
			require.NoError(t, repo.Create(ctx, newNotification("u1", domain.TypeNewFollower)))
		}
		other := newNotification("u2", domain.TypeNewFollower)
		require.NoError(t, repo.Create(ctx, other))

		deleted, err := repo.DeleteAllForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		list, err := repo.List(ctx, domain.NotificationFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Empty(t, list)

		deleted, err = repo.DeleteAllForUser(ctx, "u1")
		require.NoError(t, err)
		assert.Zero(t, deleted)

		_, err = repo.GetByID(ctx, other.ID)
		assert.NoError(t, err)
	})
}

// PreferenceRepository runs the shared preference contract.
func PreferenceRepository(t *testing.T, newRepo func(t *testing.T) ports.PreferenceRepository) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		repo := newRepo(t)
		prefs, found, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, prefs)
	})

	t.Run("SaveAndOverwrite", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, &domain.UserPreferences{
			UserID:      "u1",
			Preferences: domain.Preferences{domain.CategoryClub: false, domain.CategoryFollower: true},
		}))

		prefs, found, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, domain.Preferences{domain.CategoryClub: false, domain.CategoryFollower: true}, prefs)

		require.NoError(t, repo.Save(ctx, &domain.UserPreferences{
			UserID:      "u1",
			Preferences: domain.Preferences{domain.CategoryClub: true},
		}))
		prefs, _, err = repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.Preferences{domain.CategoryClub: true}, prefs)

		_, found, err = repo.Get(ctx, "u2")
		require.NoError(t, err)
		assert.False(t, found)
	})
}
