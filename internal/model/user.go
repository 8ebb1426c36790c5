package model

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors a row of the `users` table joined with its roles.
//
// Fields:
//
//	ID           – primary key (UUID).
//	Email        – unique, lower-cased login identifier.
//	PasswordHash – bcrypt digest; the plain password is never stored.
//	FirstName    – given name.
//	LastName     – family name.
//	Roles        – role set from `user_roles`.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []RoleName
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile strips the credential fields from the user.
func (u User) Profile() UserProfile {
	roles := make([]RoleName, len(u.Roles))
	copy(roles, u.Roles)
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     roles,
	}
}

// UserProfile is the public view of a user returned by /api/auth/me.
type UserProfile struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Roles     []RoleName `json:"roles"`
}

// HasAnyRole reports whether the profile holds at least one of roles.
func (p UserProfile) HasAnyRole(roles ...RoleName) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// RefreshToken models a row of `refresh_tokens`.  Only the SHA-256 hash of
// the encoded token is stored.  A row is valid while it exists and
// ExpiresAt lies in the future.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the row is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }
