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

// TelegramSender delivers alerts through the Telegram bot sendMessage API.
type TelegramSender struct {
	botToken string
	apiBase  string
	client   *http.Client
}

func NewTelegramSender(botToken, apiBase string) *TelegramSender {
	return &TelegramSender{
		botToken: botToken,
		apiBase:  apiBase,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type telegramRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (s *TelegramSender) Send(ctx context.Context, content *Content, channel *models.NotificationChannel) []Outcome {
	cfg, err := models.ParseChannelConfig(models.ChannelTelegram, channel.Config)
	if err != nil {
		return []Outcome{{Recipient: "unknown", Err: err.Error()}}
	}
	chatID := cfg.(models.TelegramChannelConfig).ChatID
	if chatID == "" {
		return []Outcome{{Recipient: "unknown", Err: "no chat_id configured for telegram channel"}}
	}

	if s.botToken == "" {
		return []Outcome{{Recipient: chatID, Err: "telegram bot token not configured"}}
	}

	body, err := json.Marshal(telegramRequest{
		ChatID:    chatID,
		Text:      RenderTelegramText(content),
		ParseMode: "HTML",
	})
	if err != nil {
		return []Outcome{{Recipient: chatID, Err: fmt.Sprintf("marshal telegram payload: %v", err)}}
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return []Outcome{{Recipient: chatID, Err: fmt.Sprintf("create telegram request: %v", err)}}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return []Outcome{{Recipient: chatID, Err: fmt.Sprintf("send telegram message: %v", err)}}
	}
	defer resp.Body.Close()

	var apiResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return []Outcome{{Recipient: chatID, Err: fmt.Sprintf("decode telegram response: %v", err)}}
	}

	// Response body is preserved on failure for diagnosis.
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		errMsg := apiResp.Description
		if errMsg == "" {
			errMsg = fmt.Sprintf("telegram API returned status %d", resp.StatusCode)
		}
		return []Outcome{{
			Recipient: chatID,
			Response:  models.JSONMap{"ok": apiResp.OK, "description": apiResp.Description},
			Err:       errMsg,
		}}
	}

	return []Outcome{{
		Recipient: chatID,
		OK:        true,
		Response:  models.JSONMap{"ok": true},
	}}
}
