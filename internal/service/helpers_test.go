package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/domain"
	"github.com/secureshare/portal/internal/events"
	"github.com/secureshare/portal/internal/repository"
	"github.com/secureshare/portal/internal/session"
	"github.com/secureshare/portal/internal/storage"
	apperrors "github.com/secureshare/portal/pkg/util/errorutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:              "test-secret",
			AccessTokenTTLMinutes:  60,
			VerificationTTLMinutes: 30,
			BcryptCost:             4,
			TrustMode:              config.TrustModeStrict,
		},
		Links: config.LinkConfig{
			TTLMinutes:       60,
			RetentionMinutes: 60,
			PublicBaseURL:    "https://share.test",
		},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
	}
}

type recordingDispatcher struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, event)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}

type failingBlobStore struct {
	storage.BlobStore
}

func (failingBlobStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("connection reset by peer")
}

// flakyVerifications fails Create while down is set.
type flakyVerifications struct {
	repository.VerificationRepository
	down bool
}

func (r *flakyVerifications) Create(ctx context.Context, token *domain.VerificationToken) error {
	if r.down {
		return errors.New("connection reset by peer")
	}
	return r.VerificationRepository.Create(ctx, token)
}

// keyRecordingBlobStore remembers every key written through it.
type keyRecordingBlobStore struct {
	storage.BlobStore
	keys []string
}

func (s *keyRecordingBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.keys = append(s.keys, key)
	return s.BlobStore.Put(ctx, key, r, size, contentType)
}

type failingFileRepo struct {
	repository.FileRepository
}

func (failingFileRepo) Create(context.Context, *domain.FileRecord) error {
	return errors.New("connection reset by peer")
}

// ctxBoundBlobStore hands out readers that fail once the context passed to
// Get is done, the way object store readers behave.
type ctxBoundBlobStore struct {
	storage.BlobStore
	lastCtx context.Context
}

func (s *ctxBoundBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	rc, size, err := s.BlobStore.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	s.lastCtx = ctx
	return &ctxBoundReader{ctx: ctx, ReadCloser: rc}, size, nil
}

type ctxBoundReader struct {
	io.ReadCloser
	ctx context.Context
}

func (r *ctxBoundReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, fmt.Errorf("read after context done: %w", err)
	}
	return r.ReadCloser.Read(p)
}

type harness struct {
	cfg         config.Config
	clock       *fakeClock
	dispatcher  *recordingDispatcher
	sessions    *session.Store
	accounts    repository.AccountRepository
	fileRepo    repository.FileRepository
	blobs       storage.BlobStore
	credentials *CredentialService
	files       *FileService
	links       *LinkService
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	h := &harness{
		cfg:        cfg,
		clock:      newFakeClock(),
		dispatcher: newRecordingDispatcher(),
		sessions:   session.NewStore(session.NewMemoryBackend(), nil),
		accounts:   repository.NewMemoryAccountRepository(),
		fileRepo:   repository.NewMemoryFileRepository(),
		blobs:      storage.NewMemoryBlobStore(),
	}
	h.credentials = NewCredentialService(cfg, CredentialDependencies{
		AccountRepo:      h.accounts,
		VerificationRepo: repository.NewMemoryVerificationRepository(),
		Sessions:         h.sessions,
		Dispatcher:       h.dispatcher,
	})
	h.credentials.now = h.clock.Now
	h.files = NewFileService(FileDependencies{
		FileRepo:   h.fileRepo,
		Blobs:      h.blobs,
		Dispatcher: h.dispatcher,
		MaxBytes:   cfg.Upload.MaxBytes,
	})
	h.files.now = h.clock.Now
	h.links = NewLinkService(cfg.Links, LinkDependencies{
		Files:      h.files,
		Grants:     storage.NewMemoryGrantStore(cfg.Links.Retention()),
		Dispatcher: h.dispatcher,
	})
	h.links.now = h.clock.Now
	return h
}

func opsIdentity() domain.Identity {
	return domain.Identity{ID: "ops-1", Email: "ops@company.com", DisplayName: "ops", Role: domain.RoleOps, Verified: true}
}

func clientSession(verified bool) domain.Session {
	return domain.AuthenticatedSession("sess-c", domain.Identity{
		ID: "client-1", Email: "client@company.com", DisplayName: "client", Role: domain.RoleClient, Verified: verified,
	})
}

func upload(name, mime, body string) UploadInput {
	return UploadInput{
		ClientRef:  name,
		Descriptor: domain.FileDescriptor{Name: name, MimeType: mime, Size: int64(len(body))},
		Content:    strings.NewReader(body),
	}
}

func (h *harness) seedFile(t *testing.T, name, body string) *domain.FileRecord {
	t.Helper()
	file, err := h.files.Upload(context.Background(), opsIdentity(), upload(name, "application/octet-stream", body))
	require.NoError(t, err)
	return file
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}
