package domain

import (
	"encoding/json"
	"sort"
	"time"
)

type NotificationID int64

type NotificationType string

const (
	TypeNewFollower              NotificationType = "new_follower"
	TypeMessageReceived          NotificationType = "message_received"
	TypeNewApplication           NotificationType = "new_application"
	TypeCandidacyAccepted        NotificationType = "candidacy_accepted"
	TypeCandidacyRejected        NotificationType = "candidacy_rejected"
	TypeApplicationReceived      NotificationType = "application_received"
	TypeApplicationStatusChanged NotificationType = "application_status_changed"
	TypeAffiliationRequest       NotificationType = "affiliation_request"
	TypeAffiliationAccepted      NotificationType = "affiliation_accepted"
	TypeAffiliationRejected      NotificationType = "affiliation_rejected"
	TypeAffiliationRemoved       NotificationType = "affiliation_removed"
	TypeClubJoinRequest          NotificationType = "club_join_request"
	TypeClubJoinAccepted         NotificationType = "club_join_accepted"
	TypeClubJoinRejected         NotificationType = "club_join_rejected"
	TypeNewOpportunity           NotificationType = "new_opportunity"
	TypePermissionGranted        NotificationType = "permission_granted"
	TypePermissionRevoked        NotificationType = "permission_revoked"
	TypeProfileVerified          NotificationType = "profile_verified"
	TypeAddedToFavorites         NotificationType = "added_to_favorites"
)

// Notification is relayed to clients as-is; the realtime layer never inspects it.
type Notification struct {
	ID        NotificationID         `json:"id"`
	UserID    UserID                 `json:"userId,omitempty"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

// MarshalJSON always writes metadata, as an empty object when there is none.
func (n Notification) MarshalJSON() ([]byte, error) {
	type record Notification
	r := record(n)
	if r.Metadata == nil {
		r.Metadata = map[string]interface{}{}
	}
	return json.Marshal(r)
}

// Clone returns a copy that does not share the metadata map.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	out := *n
	if n.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

type NotificationInput struct {
	UserID   UserID                 `json:"userId"`
	Type     NotificationType       `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (in NotificationInput) Validate() error {
	if in.UserID == "" || in.Type == "" || in.Title == "" || in.Message == "" {
		return ErrInvalidNotification
	}
	return nil
}

type NotificationFilter struct {
	UserID     UserID
	UnreadOnly bool
	Type       NotificationType
	Limit      int
}

// Matches reports whether n passes every non-zero criterion of the filter.
func (f NotificationFilter) Matches(n *Notification) bool {
	if f.UserID != "" && n.UserID != f.UserID {
		return false
	}
	if f.UnreadOnly && n.Read {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	return true
}

// CreateResult reports whether a notification was stored or skipped because
// the recipient disabled its category.
type CreateResult struct {
	Notification *Notification
	Skipped      bool
	Delivered    int
}

// NextNotificationID returns a millisecond timestamp id, bumped past last so
// ids stay unique when several notifications are created in the same millisecond.
func NextNotificationID(now time.Time, last NotificationID) NotificationID {
	id := NotificationID(now.UnixMilli())
	if id <= last {
		id = last + 1
	}
	return id
}

// SortNewestFirst orders by creation time, newest first, then by id.
func SortNewestFirst(list []*Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

// Apply filters, sorts and truncates list in place.
func (f NotificationFilter) Apply(list []*Notification) []*Notification {
	out := list[:0]
	for _, n := range list {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	SortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
