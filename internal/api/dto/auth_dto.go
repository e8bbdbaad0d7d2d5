package dto

import (
	"time"

	"github.com/secureshare/portal/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyRequest payload for POST /auth/verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse describes the caller's session and what it may do.
type SessionResponse struct {
	Identity        *domain.Identity `json:"identity"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	IsLoading       bool             `json:"isLoading"`
	Capability      string           `json:"capability"`
	Actions         []string         `json:"actions"`
}

// RegisterResponse reports a completed registration.
type RegisterResponse struct {
	Success         bool   `json:"success"`
	VerificationURL string `json:"verificationUrl"`
}

// VerifyResponse reports the outcome of email verification.
type VerifyResponse struct {
	Verified bool `json:"verified"`
}
