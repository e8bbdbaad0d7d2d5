package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/secureshare/portal/internal/events"
)

// WebhookSender posts signed event payloads to a single endpoint using the
// Standard Webhooks headers.
type WebhookSender struct {
	url    string
	signer *standardwebhooks.Webhook
	client *http.Client
}

// NewWebhookSender returns nil when url is empty. An empty secret sends
// unsigned requests.
func NewWebhookSender(url, secret string, timeout time.Duration) (*WebhookSender, error) {
	if url == "" {
		return nil, nil
	}
	sender := &WebhookSender{url: url, client: &http.Client{Timeout: timeout}}
	if secret != "" {
		signer, err := standardwebhooks.NewWebhookRaw([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("webhook signer: %w", err)
		}
		sender.signer = signer
	}
	return sender, nil
}

// Deliver sends event and fails on any non-2xx response.
func (w *WebhookSender) Deliver(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if w.signer != nil {
		ts := event.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		signature, err := w.signer.Sign(event.ID, ts, payload)
		if err != nil {
			return fmt.Errorf("sign webhook: %w", err)
		}
		req.Header.Set("webhook-id", event.ID)
		req.Header.Set("webhook-timestamp", fmt.Sprintf("%d", ts.Unix()))
		req.Header.Set("webhook-signature", signature)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
