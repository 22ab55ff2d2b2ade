package domain

import "github.com/lib/pq"

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleOwner  UserRole = "owner"
	UserRoleRenter UserRole = "renter"
)

type User struct {
	ID        int32          `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Email     string         `json:"email" db:"email"`
	Phone     string         `json:"phone" db:"phone"`
	PushToken *string        `json:"-" db:"push_token"`
	Roles     pq.StringArray `json:"roles" db:"roles"`
}

func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if UserRole(r) == UserRoleAdmin {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of an engine operation. System actors
// (scheduled jobs, contract callbacks) bypass ownership checks.
type Actor struct {
	UserID  int32
	IsAdmin bool
	System  bool
}

func SystemActor() Actor {
	return Actor{System: true}
}

// Privileged reports whether the actor may act on anyone's behalf.
func (a Actor) Privileged() bool {
	return a.System || a.IsAdmin
}

func (a Actor) Is(userID int32) bool {
	return a.UserID != 0 && a.UserID == userID
}
