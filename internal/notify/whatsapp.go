package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/models"
)

// WhatsAppSender delivers alerts as template messages through a Meta
// Cloud-style API. Delivery is consent-gated per recipient: each configured
// recipient's profile is checked for the opt-in flag and a usable phone
// number; a recipient without consent is skipped silently, producing no
// delivery row at all. That silence is policy, not a bug.
type WhatsAppSender struct {
	db           *gorm.DB
	apiBase      string
	phoneID      string
	accessToken  string
	templateName string
	client       *http.Client
}

func NewWhatsAppSender(db *gorm.DB, apiBase, phoneID, accessToken, templateName string) *WhatsAppSender {
	return &WhatsAppSender{
		db:           db,
		apiBase:      apiBase,
		phoneID:      phoneID,
		accessToken:  accessToken,
		templateName: templateName,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WhatsAppSender) Send(ctx context.Context, content *Content, channel *models.NotificationChannel) []Outcome {
	cfg, err := models.ParseChannelConfig(models.ChannelWhatsApp, channel.Config)
	if err != nil {
		return []Outcome{{Recipient: "unknown", Err: err.Error()}}
	}
	waCfg := cfg.(models.WhatsAppChannelConfig)

	var outcomes []Outcome
	for _, recipient := range waCfg.Recipients {
		phone, ok := s.consentedPhone(recipient)
		if !ok {
			continue
		}

		// One recipient's failure must not block the others.
		outcomes = append(outcomes, s.sendTemplate(ctx, content, phone))
	}
	return outcomes
}

// consentedPhone resolves the recipient's deliverable phone number. The
// profile's saved phone overrides the channel row's phone. Returns false
// when the user is not opted in, inactive, missing, or has no usable number.
func (s *WhatsAppSender) consentedPhone(recipient models.WhatsAppRecipient) (string, bool) {
	var user models.User
	if err := s.db.First(&user, recipient.UserID).Error; err != nil {
		return "", false
	}
	if !user.IsActive || !user.WhatsAppOptIn {
		return "", false
	}

	phone := user.WhatsAppPhone
	if phone == "" {
		phone = recipient.Phone
	}
	if phone == "" {
		return "", false
	}
	return phone, true
}

type whatsAppTemplateRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         whatsAppTemplate `json:"template"`
}

type whatsAppTemplate struct {
	Name       string              `json:"name"`
	Language   whatsAppLanguage    `json:"language"`
	Components []whatsAppComponent `json:"components"`
}

type whatsAppLanguage struct {
	Code string `json:"code"`
}

type whatsAppComponent struct {
	Type       string              `json:"type"`
	Parameters []whatsAppParameter `json:"parameters"`
}

type whatsAppParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *WhatsAppSender) sendTemplate(ctx context.Context, content *Content, phone string) Outcome {
	if s.accessToken == "" || s.phoneID == "" {
		return Outcome{Recipient: phone, Err: "whatsapp API credentials not configured"}
	}

	params := make([]whatsAppParameter, 0, 5)
	for _, p := range RenderWhatsAppParams(content) {
		params = append(params, whatsAppParameter{Type: "text", Text: p})
	}

	body, err := json.Marshal(whatsAppTemplateRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "template",
		Template: whatsAppTemplate{
			Name:       s.templateName,
			Language:   whatsAppLanguage{Code: "en"},
			Components: []whatsAppComponent{{Type: "body", Parameters: params}},
		},
	})
	if err != nil {
		return Outcome{Recipient: phone, Err: fmt.Sprintf("marshal whatsapp payload: %v", err)}
	}

	url := fmt.Sprintf("%s/%s/messages", s.apiBase, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Recipient: phone, Err: fmt.Sprintf("create whatsapp request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return Outcome{Recipient: phone, Err: fmt.Sprintf("send whatsapp message: %v", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	response := models.JSONMap{}
	_ = json.Unmarshal(respBody, &response)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{
			Recipient: phone,
			Response:  response,
			Err:       fmt.Sprintf("whatsapp API returned status %d", resp.StatusCode),
		}
	}

	return Outcome{Recipient: phone, OK: true, Response: response}
}
