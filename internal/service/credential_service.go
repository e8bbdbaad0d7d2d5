package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/auth"
	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/repository"
	"github.com/secureshare/portal/internal/session"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

const minPasswordLength = 8

// CredentialService coordinates login, logout, registration and email
// verification.
type CredentialService struct {
	accounts        repository.AccountRepository
	verifications   repository.VerificationRepository
	sessions        *session.Store
	dispatcher      events.Dispatcher
	tokenMgr        *auth.TokenManager
	logger          *zap.Logger
	bcryptCost      int
	verificationTTL time.Duration
	mockTrust       bool
	publicBaseURL   string
	now             func() time.Time
}

// CredentialDependencies encapsulates collaborators for the credential service.
type CredentialDependencies struct {
	AccountRepo      repository.AccountRepository
	VerificationRepo repository.VerificationRepository
	Sessions         *session.Store
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// LoginResult is a freshly authenticated session plus its bearer token.
type LoginResult struct {
	Session   domain.Session
	Token     string
	ExpiresAt time.Time
}

// Registration reports the outcome of Register.
type Registration struct {
	Success         bool
	VerificationURL string
}

// NewCredentialService builds the service.
func NewCredentialService(cfg config.Config, deps CredentialDependencies) *CredentialService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{
		accounts:        deps.AccountRepo,
		verifications:   deps.VerificationRepo,
		sessions:        deps.Sessions,
		dispatcher:      deps.Dispatcher,
		tokenMgr:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		logger:          logger,
		bcryptCost:      cfg.Auth.BcryptCost,
		verificationTTL: cfg.Auth.VerificationTTL(),
		mockTrust:       cfg.Auth.MockTrust(),
		publicBaseURL:   cfg.Links.PublicBaseURL,
		now:             time.Now,
	}
}

// Login authenticates the caller for role and persists the resulting identity
// under a new session id.
func (s *CredentialService) Login(ctx context.Context, email, password string, role domain.Role) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("role must be ops or client", map[string]any{"role": role})
	}

	var (
		identity domain.Identity
		err      error
	)
	if s.mockTrust {
		identity, err = s.mockIdentity(email, role)
	} else {
		identity, err = s.verifyCredentials(ctx, email, password, role)
	}
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Persist(ctx, sessionID, identity); err != nil {
		return nil, apperrors.NewTransientIOError("session store", err)
	}
	token, exp, err := s.tokenMgr.GenerateToken(sessionID, identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("login", zap.String("identity_id", identity.ID), zap.String("role", string(identity.Role)))
	return &LoginResult{
		Session:   domain.AuthenticatedSession(sessionID, identity),
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

func (s *CredentialService) verifyCredentials(ctx context.Context, email, password string, role domain.Role) (domain.Identity, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		auth.BurnCompare(password)
		return domain.Identity{}, apperrors.NewInvalidCredentials()
	}
	if err != nil {
		return domain.Identity{}, apperrors.NewTransientIOError("account store", err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return domain.Identity{}, apperrors.NewInvalidCredentials()
	}
	if account.Role != role {
		return domain.Identity{}, apperrors.NewInvalidCredentials()
	}
	return account.Identity(), nil
}

func (s *CredentialService) mockIdentity(email string, role domain.Role) (domain.Identity, error) {
	verified := true
	if role != domain.RoleOps {
		flip, err := auth.CoinFlip()
		if err != nil {
			return domain.Identity{}, apperrors.NewInternalError(err)
		}
		verified = flip
	}
	return domain.Identity{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.SplitN(email, "@", 2)[0],
		Role:        role,
		Verified:    verified,
		CreatedAt:   s.now().UTC(),
	}, nil
}

// Logout ends sess. Logging out an already cleared session succeeds.
func (s *CredentialService) Logout(ctx context.Context, sess domain.Session) error {
	if err := s.sessions.Clear(ctx, sess.ID); err != nil {
		return apperrors.NewTransientIOError("session store", err)
	}
	return nil
}

// Register creates a client account and returns a single-use verification
// URL. It does not authenticate the caller.
func (s *CredentialService) Register(ctx context.Context, email, password, name string) (*Registration, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if s.mockTrust {
		raw := fmt.Sprintf("%s%d", email, s.now().UnixMilli())
		return &Registration{
			Success:         true,
			VerificationURL: s.verificationURL(base64.RawURLEncoding.EncodeToString([]byte(raw))),
		}, nil
	}

	if email == "" || password == "" || name == "" {
		return nil, apperrors.NewValidationError("email, password, name required", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewTransientIOError("account store", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	account := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleClient,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.NewTransientIOError("account store", err)
	}

	secret, err := s.issueVerification(ctx, account)
	if err != nil {
		s.discardAccount(ctx, account)
		return nil, err
	}

	url := s.verificationURL(secret)
	s.publish(ctx, events.Event{
		Type:      events.EventAccountRegistered,
		SubjectID: account.ID,
		Payload:   events.AccountRegisteredPayload{Email: email, Name: name, VerificationURL: url},
	})
	return &Registration{Success: true, VerificationURL: url}, nil
}

func (s *CredentialService) issueVerification(ctx context.Context, account *domain.Account) (string, error) {
	secret, err := auth.NewOpaqueToken()
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	token := &domain.VerificationToken{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     secret,
		ExpiresAt: s.now().Add(s.verificationTTL),
	}
	if err := s.verifications.Create(ctx, token); err != nil {
		return "", apperrors.NewTransientIOError("verification store", err)
	}
	return secret, nil
}

// discardAccount removes an account whose verification token could not be
// stored, so the registration can be retried.
func (s *CredentialService) discardAccount(ctx context.Context, account *domain.Account) {
	if err := s.accounts.Delete(context.WithoutCancel(ctx), account.ID); err != nil {
		s.logger.Error("unverifiable account left behind",
			zap.String("account_id", account.ID), zap.String("email", account.Email), zap.Error(err))
	}
}

// VerifyEmail consumes a verification token and marks its account verified.
func (s *CredentialService) VerifyEmail(ctx context.Context, tokenStr string) (bool, error) {
	if s.mockTrust {
		return true, nil
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return false, apperrors.NewValidationError("token required", nil)
	}

	token, err := s.verifications.GetByToken(ctx, tokenStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperrors.NewNotFound("verification token", nil)
	}
	if err != nil {
		return false, apperrors.NewTransientIOError("verification store", err)
	}
	if !token.Usable(s.now()) {
		return false, apperrors.NewExpired("verification token")
	}

	consumed, err := s.verifications.MarkUsed(ctx, token.ID)
	if err != nil {
		return false, apperrors.NewTransientIOError("verification store", err)
	}
	if !consumed {
		return false, apperrors.NewExpired("verification token")
	}
	if err := s.accounts.MarkVerified(ctx, token.AccountID); err != nil {
		return false, apperrors.NewTransientIOError("account store", err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventEmailVerified,
		SubjectID: token.AccountID,
		Payload:   events.EmailVerifiedPayload{Email: token.Email},
	})
	return true, nil
}

// EnsureOpsAccount seeds an ops account when none exists for email.
func (s *CredentialService) EnsureOpsAccount(ctx context.Context, email, password, name string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	account := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleOps,
		Verified:     true,
	}
	if err := s.accounts.Create(ctx, account); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}
	s.logger.Info("bootstrap ops account ready", zap.String("email", email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *CredentialService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *CredentialService) verificationURL(token string) string {
	return s.publicBaseURL + "/verify/" + token
}

func (s *CredentialService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, event, s.now())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
