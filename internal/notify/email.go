package notify

import (
	"context"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/targetspro/adwatch/internal/models"
)

// EmailSender delivers alerts as HTML email over SMTP. One message goes to
// all configured recipients, so a channel send is one logical attempt and
// one delivery row.
type EmailSender struct {
	host     string
	port     int
	from     string
	password string
}

func NewEmailSender(host string, port int, from, password string) *EmailSender {
	return &EmailSender{host: host, port: port, from: from, password: password}
}

func (s *EmailSender) Send(_ context.Context, content *Content, channel *models.NotificationChannel) []Outcome {
	cfg, err := models.ParseChannelConfig(models.ChannelEmail, channel.Config)
	if err != nil {
		return []Outcome{{Recipient: "unknown", Err: err.Error()}}
	}
	emailCfg := cfg.(models.EmailChannelConfig)

	recipients := make([]string, 0, len(emailCfg.Recipients))
	for _, r := range emailCfg.Recipients {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	if len(recipients) == 0 {
		return []Outcome{{Recipient: "unknown", Err: "no email recipients configured"}}
	}
	primary := recipients[0]

	// Missing SMTP settings are a per-channel configuration failure, never
	// an abort of the whole dispatch.
	if s.host == "" {
		return []Outcome{{Recipient: primary, Err: "SMTP host not configured"}}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", RenderEmailSubject(content))
	m.SetBody("text/html", RenderEmailHTML(content))

	dialer := gomail.NewDialer(s.host, s.port, s.from, s.password)
	if err := dialer.DialAndSend(m); err != nil {
		return []Outcome{{Recipient: primary, Err: err.Error()}}
	}

	return []Outcome{{
		Recipient: primary,
		OK:        true,
		Response:  models.JSONMap{"recipients": len(recipients)},
	}}
}
