package domain

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents an authenticated author of the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanMutate reports whether the user may modify a resource owned by ownerID.
// Admins may mutate any resource; everyone else only resources they own.
func (u *User) CanMutate(ownerID int64) bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.ID == ownerID
}
