package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

// ChannelType is the closed set of delivery channel kinds.
type ChannelType string

const (
	ChannelEmail    ChannelType = "email"
	ChannelTelegram ChannelType = "telegram"
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelWebhook  ChannelType = "webhook"
)

// e164Pattern matches international phone numbers like +201234567890.
var e164Pattern = regexp.MustCompile(`^\+\d{10,15}$`)

// TimeWindow is a daily quiet-hours window in a channel's timezone.
// Start > End means the window wraps midnight (e.g. 22:00-06:00).
type TimeWindow struct {
	Start    string `json:"start"` // HH:MM
	End      string `json:"end"`   // HH:MM
	Timezone string `json:"timezone"`
}

func (w TimeWindow) Value() (driver.Value, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (w *TimeWindow) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for TimeWindow: %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, w)
}

// NotificationChannel is a delivery target for alerts in one org.
type NotificationChannel struct {
	gorm.Model
	OrgID       uint        `json:"org_id" gorm:"index;not null"`
	Name        string      `json:"name" gorm:"not null"`
	ChannelType ChannelType `json:"channel_type" gorm:"not null"`
	MinSeverity Severity    `json:"min_severity" gorm:"default:info"`
	IsEnabled   bool        `json:"is_enabled" gorm:"default:true"`
	// ActiveHours nil means 24/7 delivery (no quiet hours).
	ActiveHours *TimeWindow `json:"active_hours" gorm:"type:text"`
	Config      JSONMap     `json:"config" gorm:"type:text"`
}

// ChannelConfig is the decoded, type-specific configuration of a channel.
type ChannelConfig interface {
	Validate() error
	// PrimaryRecipient is the representative recipient recorded on delivery
	// rows that are not tied to an individual recipient (e.g. quiet-hours
	// queue entries).
	PrimaryRecipient() string
}

type EmailChannelConfig struct {
	Recipients []string `json:"recipients"`
}

func (c EmailChannelConfig) Validate() error {
	if len(c.Recipients) == 0 {
		return fmt.Errorf("at least one email recipient is required")
	}
	return nil
}

func (c EmailChannelConfig) PrimaryRecipient() string {
	if len(c.Recipients) > 0 {
		return c.Recipients[0]
	}
	return "unknown"
}

type TelegramChannelConfig struct {
	ChatID string `json:"chat_id"`
}

func (c TelegramChannelConfig) Validate() error {
	if c.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	return nil
}

func (c TelegramChannelConfig) PrimaryRecipient() string {
	if c.ChatID == "" {
		return "unknown"
	}
	return c.ChatID
}

// WhatsAppRecipient ties a channel recipient row to a user profile. The
// profile's consent flag and saved phone are checked at dispatch time.
type WhatsAppRecipient struct {
	UserID uint   `json:"user_id"`
	Phone  string `json:"phone"`
}

type WhatsAppChannelConfig struct {
	Recipients []WhatsAppRecipient `json:"recipients"`
}

func (c WhatsAppChannelConfig) Validate() error {
	if len(c.Recipients) == 0 {
		return fmt.Errorf("at least one whatsapp recipient is required")
	}
	for i, r := range c.Recipients {
		if r.UserID == 0 {
			return fmt.Errorf("recipient %d: user_id is required", i)
		}
		if !e164Pattern.MatchString(r.Phone) {
			return fmt.Errorf("recipient %d: phone must be E.164 format (e.g. +201234567890)", i)
		}
	}
	return nil
}

func (c WhatsAppChannelConfig) PrimaryRecipient() string {
	if len(c.Recipients) > 0 {
		return c.Recipients[0].Phone
	}
	return "unknown"
}

type WebhookChannelConfig struct {
	URL string `json:"url"`
}

func (c WebhookChannelConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

func (c WebhookChannelConfig) PrimaryRecipient() string {
	if c.URL == "" {
		return "unknown"
	}
	return c.URL
}

// ParseChannelConfig decodes a raw config map into the variant for
// channelType. Call Validate before persisting a channel.
func ParseChannelConfig(channelType ChannelType, raw JSONMap) (ChannelConfig, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode channel config: %w", err)
	}

	switch channelType {
	case ChannelEmail:
		var cfg EmailChannelConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode email config: %w", err)
		}
		return cfg, nil
	case ChannelTelegram:
		var cfg TelegramChannelConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode telegram config: %w", err)
		}
		return cfg, nil
	case ChannelWhatsApp:
		var cfg WhatsAppChannelConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode whatsapp config: %w", err)
		}
		return cfg, nil
	case ChannelWebhook:
		var cfg WebhookChannelConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode webhook config: %w", err)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("unknown channel type: %s", channelType)
	}
}

// Validate checks the channel's scalar fields and its type-specific config.
func (ch *NotificationChannel) Validate() error {
	if ch.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if !ch.MinSeverity.IsValid() {
		return fmt.Errorf("invalid min_severity: %s", ch.MinSeverity)
	}
	if ch.ActiveHours != nil {
		if ch.ActiveHours.Start == "" || ch.ActiveHours.End == "" {
			return fmt.Errorf("active_hours requires both start and end")
		}
	}
	cfg, err := ParseChannelConfig(ch.ChannelType, ch.Config)
	if err != nil {
		return err
	}
	return cfg.Validate()
}
