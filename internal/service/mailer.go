package service

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer returns nil when apiKey is empty.
func NewResendMailer(apiKey, from string) *ResendMailer {
	if apiKey == "" {
		return nil
	}
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, body string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func verificationEmail(name, url string) (subject, body string) {
	subject = "Verify your email"
	greeting := "Hello"
	if name != "" {
		greeting += " " + name
	}
	body = fmt.Sprintf("%s,\n\nConfirm your email address to finish setting up your account:\n\n%s\n\nIf you did not register, ignore this message.\n", greeting, url)
	return subject, body
}
