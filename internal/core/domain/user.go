package domain

type UserID string

func (id UserID) String() string {
	return string(id)
}

type UserRole string

const (
	// RoleUser may only read and modify its own notifications.
	RoleUser UserRole = "user"
	// RoleService is used by producers and may act on behalf of any user.
	RoleService UserRole = "service"
)
