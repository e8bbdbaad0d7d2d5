package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/access"
	"github.com/secureshare/portal/internal/auth"
	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/storage"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

// LinkService mints and redeems time-bounded download grants.
type LinkService struct {
	files           *FileService
	grants          storage.GrantStore
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	ttl             time.Duration
	publicBaseURL   string
	requireVerified bool
	now             func() time.Time
}

// LinkDependencies bundles collaborators for the link service.
type LinkDependencies struct {
	Files      *FileService
	Grants     storage.GrantStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// Redemption is a validated grant with the content it unlocks. Content is
// not bound to the redeeming context; the caller closes it.
type Redemption struct {
	Grant   domain.DownloadGrant
	File    domain.FileRecord
	Content io.ReadCloser
	Size    int64
}

// NewLinkService constructs the service.
func NewLinkService(cfg config.LinkConfig, deps LinkDependencies) *LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkService{
		files:           deps.Files,
		grants:          deps.Grants,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		ttl:             cfg.TTL(),
		publicBaseURL:   cfg.PublicBaseURL,
		requireVerified: cfg.RequireVerified,
		now:             time.Now,
	}
}

// Issue mints a new grant for fileID. Every call yields a distinct token;
// earlier grants stay redeemable until they expire.
func (s *LinkService) Issue(ctx context.Context, sess domain.Session, fileID string) (*domain.DownloadGrant, error) {
	if err := s.authorize(sess); err != nil {
		return nil, err
	}
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	now := s.now().UTC()
	grant := domain.DownloadGrant{
		FileID:    file.ID,
		Token:     token,
		URL:       s.publicBaseURL + "/download/" + token,
		ExpiresAt: now.Add(s.ttl),
		IssuedTo:  sess.Identity.ID,
		IssuedAt:  now,
	}
	if err := s.grants.Save(ctx, grant); err != nil {
		return nil, apperrors.NewTransientIOError("grant store", err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventLinkIssued,
		SubjectID: file.ID,
		Actor:     events.ActorFor(sess.Identity),
		Payload:   events.LinkIssuedPayload{ExpiresAt: grant.ExpiresAt},
	}, now)
	return &grant, nil
}

// Current returns the most recent grant sess holds for fileID.
func (s *LinkService) Current(ctx context.Context, sess domain.Session, fileID string) (*domain.DownloadGrant, error) {
	if err := s.authorize(sess); err != nil {
		return nil, err
	}
	grant, err := s.grants.Latest(ctx, sess.Identity.ID, fileID)
	if errors.Is(err, storage.ErrGrantNotFound) {
		return nil, apperrors.NewNotFound("download grant", map[string]any{"file_id": fileID})
	}
	if err != nil {
		return nil, apperrors.NewTransientIOError("grant store", err)
	}
	return grant, nil
}

// Redeem validates token, records the download and opens the file content.
// The content stays readable after ctx is cancelled, since the response
// body is streamed once the request handler has returned.
func (s *LinkService) Redeem(ctx context.Context, token string) (*Redemption, error) {
	if token == "" {
		return nil, apperrors.NewValidationError("token required", nil)
	}
	grant, err := s.grants.Get(ctx, token)
	if errors.Is(err, storage.ErrGrantNotFound) {
		return nil, apperrors.NewNotFound("download grant", nil)
	}
	if err != nil {
		return nil, apperrors.NewTransientIOError("grant store", err)
	}
	now := s.now()
	if grant.Expired(now) {
		return nil, apperrors.NewExpired("download grant")
	}

	file, err := s.files.Get(ctx, grant.FileID)
	if err != nil {
		return nil, err
	}
	streamCtx, release := context.WithCancel(context.WithoutCancel(ctx))
	content, size, err := s.files.Open(streamCtx, file)
	if err != nil {
		release()
		return nil, err
	}

	s.files.RecordDownload(ctx, file.ID)
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventFileDownloaded,
		SubjectID: file.ID,
		Payload:   events.FileDownloadedPayload{IssuedTo: grant.IssuedTo},
	}, now)

	return &Redemption{
		Grant:   *grant,
		File:    *file,
		Content: &releasingReader{ReadCloser: content, release: release},
		Size:    size,
	}, nil
}

// releasingReader cancels the stream context once the content is closed.
type releasingReader struct {
	io.ReadCloser
	release context.CancelFunc
}

func (r *releasingReader) Close() error {
	defer r.release()
	return r.ReadCloser.Close()
}

// Remaining reports the time left on grant.
func (s *LinkService) Remaining(grant domain.DownloadGrant) domain.TimeRemaining {
	return grant.Remaining(s.now())
}

func (s *LinkService) authorize(sess domain.Session) error {
	if !sess.IsAuthenticated || sess.Identity == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	capability, _ := access.Resolve(sess)
	if !capability.Allows(access.ActionIssueLink) {
		return apperrors.NewForbidden("link issuance requires client capability")
	}
	if s.requireVerified && !sess.Identity.Verified {
		return apperrors.NewForbidden("email verification required")
	}
	return nil
}
