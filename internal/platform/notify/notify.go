// Package notify delivers processed messages to the practice's chat
// platform through an outbound webhook. Delivery is best-effort: the
// ingestion response never depends on it, and failures are surfaced to the
// caller for logging only.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clinbridge/clinbridge/internal/canonical"
	"github.com/clinbridge/clinbridge/internal/platform/reasoning"
)

// Sender receives a fully normalized message together with the reasoning
// decision for formatting and posting. The core's responsibility ends here.
type Sender interface {
	Send(ctx context.Context, msg *canonical.Message, decision *reasoning.Decision) error
}

// NopSender discards messages; used when no webhook is configured.
type NopSender struct{}

func (NopSender) Send(context.Context, *canonical.Message, *reasoning.Decision) error {
	return nil
}

// WebhookSender posts a JSON payload to a chat-platform webhook URL. When a
// secret is configured the payload is signed with HMAC-SHA256 so the
// receiver can verify origin.
type WebhookSender struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookSender creates a sender for the given webhook URL. The secret
// may be empty to disable signing.
func NewWebhookSender(url, secret string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// deliveryPayload is the wire shape posted to the chat platform.
type deliveryPayload struct {
	MessageID    string              `json:"message_id"`
	MessageType  canonical.MessageType `json:"message_type"`
	Urgency      canonical.Urgency   `json:"urgency"`
	Subject      string              `json:"subject"`
	Body         string              `json:"body"`
	Patient      string              `json:"patient"`
	DeepLink     string              `json:"deep_link,omitempty"`
	Action       string              `json:"action"`
	ResponseText string              `json:"response_text"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, msg *canonical.Message, decision *reasoning.Decision) error {
	payload := deliveryPayload{
		MessageID:   msg.ID,
		MessageType: msg.Type,
		Urgency:     msg.Content.Urgency,
		Subject:     msg.Content.Subject,
		Body:        msg.Content.Body,
		Patient:     fmt.Sprintf("%s %s (%s)", msg.Patient.FirstName, msg.Patient.LastName, msg.Patient.MRN),
		DeepLink:    msg.DeepLink,
		Timestamp:   time.Now().UTC(),
	}
	if decision != nil {
		payload.Action = decision.Action
		payload.ResponseText = decision.ResponseText
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+sign(body, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 of the payload.
func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
