package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/events"
)

type capturedMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []capturedMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, capturedMail{to, subject, body})
	return m.err
}

func TestNotificationService_StubsWithoutChannels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom:  "noreply@share.test",
		WebhookURL: "https://hooks.share.test/files",
	}, NotificationChannels{})
	svc.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:      events.EventAccountRegistered,
		SubjectID: "acct-1",
		Payload:   events.AccountRegisteredPayload{Email: "c@company.com"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventFileUploaded, SubjectID: "file-1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventLinkIssued, SubjectID: "file-1"}))

	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendWebhookNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("audit").Len())
}

func TestNotificationService_SendsVerificationEmail(t *testing.T) {
	mailer := &fakeMailer{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{}, NotificationChannels{Mailer: mailer}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventAccountRegistered,
		Payload: events.AccountRegisteredPayload{
			Email:           "c@company.com",
			Name:            "Client",
			VerificationURL: "https://share.test/verify/abc",
		},
	}))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "c@company.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "https://share.test/verify/abc")
	assert.Contains(t, mailer.sent[0].body, "Hello Client")
}

func TestNotificationService_MailerFailureSurfaces(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{}, NotificationChannels{Mailer: mailer}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventAccountRegistered,
		Payload: events.AccountRegisteredPayload{Email: "c@company.com"},
	})
	assert.Error(t, err)
}

func TestWebhookSender_SignsPayload(t *testing.T) {
	const secret = "webhook-test-secret"
	var (
		mu      sync.Mutex
		body    []byte
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender, err := NewWebhookSender(srv.URL, secret, time.Second)
	require.NoError(t, err)

	event := events.Event{ID: "evt-1", Type: events.EventFileUploaded, SubjectID: "file-1", Timestamp: time.Now().UTC()}
	require.NoError(t, sender.Deliver(context.Background(), event))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "evt-1", headers.Get("webhook-id"))
	verifier, err := standardwebhooks.NewWebhookRaw([]byte(secret))
	require.NoError(t, err)
	assert.NoError(t, verifier.Verify(body, headers))
}

func TestWebhookSender_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender, err := NewWebhookSender(srv.URL, "", time.Second)
	require.NoError(t, err)
	assert.Error(t, sender.Deliver(context.Background(), events.Event{ID: "evt-2"}))
}

func TestNewWebhookSender_DisabledWithoutURL(t *testing.T) {
	sender, err := NewWebhookSender("", "secret", time.Second)
	require.NoError(t, err)
	assert.Nil(t, sender)
	assert.Nil(t, NewResendMailer("", "noreply@share.test"))
}
