package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/access"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/session"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

const sessionKey = "auth_session"

// AuthMiddleware validates bearer tokens and restores the caller's session.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions *session.Store
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions *session.Store, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, sessions: sessions, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c)
	if err != nil {
		return err
	}
	sess, err := m.resolve(c, raw)
	if err != nil {
		return err
	}
	c.Locals(sessionKey, sess)
	return c.Next()
}

// Optional resolves a session when a bearer token is present and falls back
// to an anonymous session otherwise.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	sess := domain.AnonymousSession()
	if raw, err := bearerToken(c); err == nil {
		if resolved, err := m.resolve(c, raw); err == nil {
			sess = resolved
		}
	}
	c.Locals(sessionKey, sess)
	return c.Next()
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx, raw string) (domain.Session, error) {
	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return domain.Session{}, apperrors.NewUnauthorized("invalid token")
	}

	sess, err := m.sessions.Restore(c.UserContext(), claims.SessionID)
	if err != nil {
		m.logger.Error("session restore failed", zap.String("session_id", claims.SessionID), zap.Error(err))
		return domain.Session{}, apperrors.NewTransientIOError("session store", err)
	}
	if !sess.IsAuthenticated {
		return domain.Session{}, apperrors.NewUnauthorized("session ended")
	}
	if sess.Identity.ID != claims.Subject {
		return domain.Session{}, apperrors.NewUnauthorized("session mismatch")
	}
	return sess, nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}

// SessionFromContext retrieves the session attached by the middleware.
func SessionFromContext(c *fiber.Ctx) (domain.Session, bool) {
	sess, ok := c.Locals(sessionKey).(domain.Session)
	return sess, ok
}

// RequireCapability ensures the routed capability of the caller allows action.
func RequireCapability(router *access.Router, action access.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := SessionFromContext(c)
		if !ok || !sess.IsAuthenticated {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !router.Route(sess).Allows(action) {
			return apperrors.NewForbidden("insufficient capability")
		}
		return c.Next()
	}
}
