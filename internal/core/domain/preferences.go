package domain

type Category string

const (
	CategoryFollower      Category = "follower"
	CategoryMessages      Category = "messages"
	CategoryApplications  Category = "applications"
	CategoryAffiliations  Category = "affiliations"
	CategoryClub          Category = "club"
	CategoryOpportunities Category = "opportunities"
	CategoryPermissions   Category = "permissions"
	CategoryProfile       Category = "profile"
)

var typeCategories = map[NotificationType]Category{
	TypeNewFollower:              CategoryFollower,
	TypeMessageReceived:          CategoryMessages,
	TypeNewApplication:           CategoryApplications,
	TypeCandidacyAccepted:        CategoryApplications,
	TypeCandidacyRejected:        CategoryApplications,
	TypeApplicationReceived:      CategoryApplications,
	TypeApplicationStatusChanged: CategoryApplications,
	TypeAffiliationRequest:       CategoryAffiliations,
	TypeAffiliationAccepted:      CategoryAffiliations,
	TypeAffiliationRejected:      CategoryAffiliations,
	TypeAffiliationRemoved:       CategoryAffiliations,
	TypeClubJoinRequest:          CategoryClub,
	TypeClubJoinAccepted:         CategoryClub,
	TypeClubJoinRejected:         CategoryClub,
	TypeNewOpportunity:           CategoryOpportunities,
	TypePermissionGranted:        CategoryPermissions,
	TypePermissionRevoked:        CategoryPermissions,
	TypeProfileVerified:          CategoryProfile,
	TypeAddedToFavorites:         CategoryProfile,
}

// CategoryOf returns the preference category of a notification type.
// Unknown types have no category.
func CategoryOf(t NotificationType) (Category, bool) {
	c, ok := typeCategories[t]
	return c, ok
}

// CountsAsUnread reports whether notifications of type t contribute to the
// unread badge. Messages have their own counter in the UI.
func CountsAsUnread(t NotificationType) bool {
	c, ok := CategoryOf(t)
	return !ok || c != CategoryMessages
}

type Preferences map[Category]bool

func DefaultPreferences() Preferences {
	return Preferences{
		CategoryFollower:      true,
		CategoryMessages:      true,
		CategoryApplications:  true,
		CategoryAffiliations:  true,
		CategoryClub:          true,
		CategoryOpportunities: true,
		CategoryPermissions:   true,
		CategoryProfile:       true,
	}
}

// Merge overlays stored values on the defaults.
func (p Preferences) Merge(stored Preferences) Preferences {
	out := make(Preferences, len(p)+len(stored))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range stored {
		out[k] = v
	}
	return out
}

type UserPreferences struct {
	UserID      UserID      `json:"userId"`
	Preferences Preferences `json:"preferences"`
}

// Allows reports whether the user accepts notifications of type t.
func (up *UserPreferences) Allows(t NotificationType) bool {
	c, ok := CategoryOf(t)
	if !ok || up == nil {
		return true
	}
	enabled, set := up.Preferences[c]
	return !set || enabled
}
