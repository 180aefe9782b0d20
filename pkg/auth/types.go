package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization dimension of an account. It is a closed set;
// use ParseRole to turn external input into a Role.
type Role string

const (
	RoleAdmin    Role = "admin"    // Full access, including account administration
	RoleMusician Role = "musician" // Restricted access
)

// ParseRole converts a string into a Role. The legacy "musico" spelling is
// accepted for musicians. Unknown values are rejected.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleMusician), "musico":
		return RoleMusician, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMusician
}

// IsAdmin reports whether r is the privileged role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Account is the stored login identity
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"` // Never serialized
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Instrument   *string   `json:"instrument,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	Photo        *string   `json:"photo,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity returns the public view of the account attached to requests.
func (a *Account) Identity() Identity {
	return Identity{
		ID:         a.ID,
		Email:      a.Email,
		Name:       a.Name,
		Role:       a.Role,
		Instrument: a.Instrument,
		Phone:      a.Phone,
		Photo:      a.Photo,
	}
}

// Identity is the resolved, hash-free view of an authenticated account
type Identity struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	Role       Role    `json:"role"`
	Instrument *string `json:"instrument,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Photo      *string `json:"photo,omitempty"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role.IsAdmin()
}

// Session is one server-side authenticated connection. Only the SHA-256
// hash of the bearer token is persisted.
type Session struct {
	ID           string
	AccountID    string
	TokenHash    string
	ExpiresAt    time.Time
	LastActivity time.Time
	CreatedAt    time.Time
}

// ResetToken is an outstanding password-reset request
type ResetToken struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// AuthContext holds the authenticated state of a request
type AuthContext struct {
	Identity Identity
	Token    string // Raw bearer token, needed for logout
}

// HasRole checks whether the authenticated identity holds role.
func (ac *AuthContext) HasRole(role Role) bool {
	if ac == nil {
		return false
	}
	return ac.Identity.Role == role
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Identity Identity `json:"user"`
	Token    string   `json:"token"`
}

// NewAccount carries the fields needed to create an account
type NewAccount struct {
	Email      string
	Password   string
	Name       string
	Role       string
	Instrument *string
	Phone      *string
	Photo      *string
}

// AccountPatch is a partial update; nil fields are left unchanged.
type AccountPatch struct {
	Email       *string
	Name        *string
	Role        *string
	Instrument  *string
	Phone       *string
	Photo       *string
	Active      *bool
	NewPassword *string
}

// SeedAccount describes an account created at startup when no account with
// the same role exists yet.
type SeedAccount struct {
	Email      string
	Password   string
	Name       string
	Role       Role
	Instrument *string
	Phone      *string
}
