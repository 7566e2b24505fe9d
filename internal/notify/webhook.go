package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/targetspro/adwatch/internal/models"
)

// WebhookSender posts the alert summary as JSON to a configured URL, for
// orgs that route alerts into their own tooling.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type webhookPayload struct {
	Reference   string         `json:"reference"`
	Severity    string         `json:"severity"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	AccountName string         `json:"account_name"`
	Platform    string         `json:"platform"`
	Context     models.JSONMap `json:"context"`
	CreatedAt   string         `json:"created_at"`
	URL         string         `json:"url"`
}

func (s *WebhookSender) Send(ctx context.Context, content *Content, channel *models.NotificationChannel) []Outcome {
	cfg, err := models.ParseChannelConfig(models.ChannelWebhook, channel.Config)
	if err != nil {
		return []Outcome{{Recipient: "unknown", Err: err.Error()}}
	}
	url := cfg.(models.WebhookChannelConfig).URL
	if url == "" {
		return []Outcome{{Recipient: "unknown", Err: "no url configured for webhook channel"}}
	}

	body, err := json.Marshal(webhookPayload{
		Reference:   content.Alert.Reference,
		Severity:    string(content.Alert.Severity),
		Title:       content.Alert.Title,
		Message:     content.Alert.Message,
		AccountName: content.accountName(),
		Platform:    content.platform(),
		Context:     content.Alert.ContextData,
		CreatedAt:   content.Alert.CreatedAt.Format(time.RFC3339),
		URL:         content.alertURL(),
	})
	if err != nil {
		return []Outcome{{Recipient: url, Err: fmt.Sprintf("marshal webhook payload: %v", err)}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return []Outcome{{Recipient: url, Err: fmt.Sprintf("create webhook request: %v", err)}}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return []Outcome{{Recipient: url, Err: fmt.Sprintf("post webhook: %v", err)}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return []Outcome{{
			Recipient: url,
			Response:  models.JSONMap{"status_code": resp.StatusCode},
			Err:       fmt.Sprintf("webhook returned status %d", resp.StatusCode),
		}}
	}

	return []Outcome{{Recipient: url, OK: true, Response: models.JSONMap{"status_code": resp.StatusCode}}}
}
