package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/secureshare/portal/internal/access"
	"github.com/secureshare/portal/internal/api/dto"
	"github.com/secureshare/portal/internal/auth"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/service"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

// AuthHandler exposes login, logout, registration and session endpoints.
type AuthHandler struct {
	credentials *service.CredentialService
	router      *access.Router
}

// NewAuthHandler constructs handler.
func NewAuthHandler(credentials *service.CredentialService, router *access.Router) *AuthHandler {
	return &AuthHandler{credentials: credentials, router: router}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.credentials.Login(c.UserContext(), req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"session": h.sessionResponse(res.Session),
			"auth":    dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt},
		},
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.credentials.Logout(c.UserContext(), sess); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.sessionResponse(domain.AnonymousSession())})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	reg, err := h.credentials.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.RegisterResponse{Success: reg.Success, VerificationURL: reg.VerificationURL},
	})
}

// Verify handles POST /auth/verify.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	verified, err := h.credentials.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.VerifyResponse{Verified: verified}})
}

// Session handles GET /session. Anonymous callers get an unauthenticated
// session rather than an error.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		sess = domain.AnonymousSession()
	}
	return c.JSON(fiber.Map{"data": h.sessionResponse(sess)})
}

func (h *AuthHandler) sessionResponse(sess domain.Session) dto.SessionResponse {
	capability := h.router.Route(sess)
	actions := capability.Actions()
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return dto.SessionResponse{
		Identity:        sess.Identity,
		IsAuthenticated: sess.IsAuthenticated,
		IsLoading:       sess.IsLoading,
		Capability:      string(capability),
		Actions:         names,
	}
}
