package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier posts alerts as JSON to a URL (Slack, Discord, n8n).
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

type webhookPayload struct {
	Text      string                `json:"text"`
	Candidate alertPayloadCandidate `json:"candidate"`
	ScanID    string                `json:"scan_id"`
	Timestamp time.Time             `json:"timestamp"`
}

// Deliver posts the alert. Any 2xx status counts as delivered.
func (w *WebhookNotifier) Deliver(ctx context.Context, a Alert) error {
	body, err := json.Marshal(webhookPayload{
		Text:      FormatText(a.Candidate),
		Candidate: candidatePayload(a.Candidate),
		ScanID:    a.RunID,
		Timestamp: a.At,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
