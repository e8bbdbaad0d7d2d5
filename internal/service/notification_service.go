package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/config"
	"github.com/secureshare/portal/internal/events"
)

// WebhookDeliverer pushes an event to an external endpoint.
type WebhookDeliverer interface {
	Deliver(ctx context.Context, event events.Event) error
}

// NotificationChannels are the optional outbound channels. A nil channel
// falls back to logging what would have been sent.
type NotificationChannels struct {
	Mailer   Mailer
	Webhooks WebhookDeliverer
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	channels   NotificationChannels
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, channels NotificationChannels) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		channels:   channels,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleAccountRegistered)
	n.dispatcher.Subscribe(events.EventEmailVerified, n.handleAudit)
	n.dispatcher.Subscribe(events.EventFileUploaded, n.handleFileUploaded)
	n.dispatcher.Subscribe(events.EventLinkIssued, n.handleAudit)
	n.dispatcher.Subscribe(events.EventFileDownloaded, n.handleAudit)
}

func (n *NotificationService) handleAccountRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountRegisteredPayload)
	if !ok {
		return nil
	}
	n.logger.Info("AccountRegistered", zap.String("account_id", event.SubjectID), zap.String("email", payload.Email))

	subject, body := verificationEmail(payload.Name, payload.VerificationURL)
	if n.channels.Mailer == nil {
		n.sendEmailNotificationStub(payload.Email, subject)
		return nil
	}
	return n.channels.Mailer.Send(ctx, payload.Email, subject, body)
}

func (n *NotificationService) handleFileUploaded(ctx context.Context, event events.Event) error {
	n.logger.Info("FileUploaded", zap.String("file_id", event.SubjectID), zap.Any("payload", event.Payload))
	if n.channels.Webhooks == nil {
		n.sendWebhookNotificationStub(event)
		return nil
	}
	return n.channels.Webhooks.Deliver(ctx, event)
}

func (n *NotificationService) handleAudit(_ context.Context, event events.Event) error {
	n.logger.Info("audit",
		zap.String("event_type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("actor_id", event.Actor.IdentityID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(to, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("subject", subject))
}

func (n *NotificationService) sendWebhookNotificationStub(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
