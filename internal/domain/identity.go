package domain

import "time"

// Role enumerates portal roles.
type Role string

const (
	RoleOps    Role = "ops"
	RoleClient Role = "client"
)

// Valid reports whether r is a defined role.
func (r Role) Valid() bool {
	return r == RoleOps || r == RoleClient
}

// Identity is the authenticated actor carried by a Session. It is immutable
// once issued.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Account is the stored credential record an Identity is derived from.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity derives the session identity for the account.
func (a *Account) Identity() Identity {
	return Identity{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.Name,
		Role:        a.Role,
		Verified:    a.Role == RoleOps || a.Verified,
		CreatedAt:   a.CreatedAt,
	}
}

// VerificationToken is a single-use email verification secret.
type VerificationToken struct {
	ID        string
	AccountID string
	Email     string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token is unused and not expired at now.
func (v *VerificationToken) Usable(now time.Time) bool {
	return v.UsedAt == nil && now.Before(v.ExpiresAt)
}
