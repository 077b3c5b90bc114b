package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	c, ok := CategoryOf(TypeCandidacyRejected)
	assert.True(t, ok)
	assert.Equal(t, CategoryApplications, c)

	_, ok = CategoryOf("system_maintenance")
	assert.False(t, ok)
}

func TestCountsAsUnread(t *testing.T) {
	assert.True(t, CountsAsUnread(TypeNewFollower))
	assert.True(t, CountsAsUnread("unknown_type"))
	assert.False(t, CountsAsUnread(TypeMessageReceived))
}

func TestUserPreferences_Allows(t *testing.T) {
	prefs := &UserPreferences{
		UserID:      "u1",
		Preferences: DefaultPreferences().Merge(Preferences{CategoryClub: false}),
	}

	assert.False(t, prefs.Allows(TypeClubJoinAccepted))
	assert.True(t, prefs.Allows(TypeNewFollower))
	assert.True(t, prefs.Allows("unknown_type"))

	var none *UserPreferences
	assert.True(t, none.Allows(TypeClubJoinAccepted))
}

func TestPreferences_MergeKeepsDefaults(t *testing.T) {
	merged := DefaultPreferences().Merge(Preferences{CategoryMessages: false})
	assert.Len(t, merged, 8)
	assert.False(t, merged[CategoryMessages])
	assert.True(t, merged[CategoryProfile])
}

func TestNextNotificationID(t *testing.T) {
	now := time.UnixMilli(1000)
	assert.Equal(t, NotificationID(1000), NextNotificationID(now, 0))
	assert.Equal(t, NotificationID(1001), NextNotificationID(now, 1000))
	assert.Equal(t, NotificationID(5001), NextNotificationID(now, 5000))
}

func TestNotificationFilter_Apply(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	list := []*Notification{
		{ID: 1, UserID: "u1", Type: TypeNewFollower, CreatedAt: base},
		{ID: 2, UserID: "u1", Type: TypeMessageReceived, Read: true, CreatedAt: base.Add(time.Minute)},
		{ID: 3, UserID: "u2", Type: TypeNewFollower, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 4, UserID: "u1", Type: TypeNewFollower, CreatedAt: base.Add(3 * time.Minute)},
	}

	ids := func(ns []*Notification) []NotificationID {
		var out []NotificationID
		for _, n := range ns {
			out = append(out, n.ID)
		}
		return out
	}

	clone := func() []*Notification { return append([]*Notification(nil), list...) }

	assert.Equal(t, []NotificationID{4, 2, 1}, ids(NotificationFilter{UserID: "u1"}.Apply(clone())))
	assert.Equal(t, []NotificationID{4, 1}, ids(NotificationFilter{UserID: "u1", UnreadOnly: true}.Apply(clone())))
	assert.Equal(t, []NotificationID{4, 3, 1}, ids(NotificationFilter{Type: TypeNewFollower}.Apply(clone())))
	assert.Equal(t, []NotificationID{4}, ids(NotificationFilter{UserID: "u1", Limit: 1}.Apply(clone())))
}

func TestNotificationInput_Validate(t *testing.T) {
	assert.NoError(t, NotificationInput{UserID: "u1", Type: TypeNewFollower, Title: "t", Message: "m"}.Validate())
	assert.ErrorIs(t, NotificationInput{UserID: "u1", Type: TypeNewFollower, Title: "t"}.Validate(), ErrInvalidNotification)
}

func TestNotification_Clone(t *testing.T) {
	n := &Notification{ID: 1, Metadata: map[string]interface{}{"k": "v"}}
	c := n.Clone()
	c.Metadata["k"] = "changed"
	assert.Equal(t, "v", n.Metadata["k"])
}

func TestFormatTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 29, 18, 26, 40, 123456789, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2024-05-29T16:26:40.123Z", FormatTimestamp(at))
	assert.Equal(t, "2024-05-29T16:26:40.000Z", FormatTimestamp(at.Truncate(time.Second)))
}
