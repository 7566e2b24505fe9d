package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/targetspro/adwatch/internal/models"
)

// ErrAlertNotFound means the dispatch request referenced an unknown alert.
// It wraps gorm.ErrRecordNotFound so callers holding only the Dispatcher
// interface can classify it without importing this package.
var ErrAlertNotFound = fmt.Errorf("alert not found: %w", gorm.ErrRecordNotFound)

// Outcome is the result of one send attempt to one recipient.
type Outcome struct {
	Recipient string
	OK        bool
	Response  models.JSONMap
	Err       string
}

// Sender delivers one alert through one channel. Implementations return one
// outcome per recipient actually attempted; a recipient skipped by policy
// (e.g. no consent) produces no outcome at all.
type Sender interface {
	Send(ctx context.Context, content *Content, channel *models.NotificationChannel) []Outcome
}

// Dispatcher fans one alert out to every eligible channel of its org and
// records every attempt as an AlertDelivery row.
type Dispatcher struct {
	db           *gorm.DB
	senders      map[models.ChannelType]Sender
	timezone     string
	dashboardURL string
	logger       zerolog.Logger
}

func NewDispatcher(db *gorm.DB, senders map[models.ChannelType]Sender, timezone, dashboardURL string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		db:           db,
		senders:      senders,
		timezone:     timezone,
		dashboardURL: dashboardURL,
		logger:       logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch delivers the alert to all enabled channels that pass the severity
// filter. Quiet-hours suppressions are logged as queued deliveries; one
// channel's failure never blocks the remaining channels. Returns counters
// of sent and failed attempts.
func (d *Dispatcher) Dispatch(ctx context.Context, alertID uint) (dispatched, failed int, err error) {
	var a models.Alert
	if loadErr := d.db.First(&a, alertID).Error; loadErr != nil {
		if errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return 0, 0, ErrAlertNotFound
		}
		return 0, 0, fmt.Errorf("load alert: %w", loadErr)
	}

	content := &Content{
		Alert:        &a,
		Timezone:     d.timezone,
		DashboardURL: d.dashboardURL,
	}

	// Missing joins are data errors, not dispatch failures; renderers show
	// "Unknown" for absent rows.
	var rule models.AlertRule
	if err := d.db.First(&rule, a.AlertRuleID).Error; err == nil {
		content.Rule = &rule
	}
	var account models.AdAccount
	if err := d.db.First(&account, a.AdAccountID).Error; err == nil {
		content.Account = &account
	}

	var channels []models.NotificationChannel
	if loadErr := d.db.Where("org_id = ? AND is_enabled = ?", a.OrgID, true).Find(&channels).Error; loadErr != nil {
		return 0, 0, fmt.Errorf("load channels: %w", loadErr)
	}

	for i := range channels {
		ch := &channels[i]

		if a.Severity.Rank() < ch.MinSeverity.Rank() {
			continue
		}

		// Emergency always bypasses quiet hours.
		if a.Severity != models.SeverityEmergency && inQuietHours(ch.ActiveHours, d.timezone, time.Now()) {
			d.logDelivery(a.ID, ch.ChannelType, d.channelRecipient(ch), models.DeliveryStatusQueued,
				models.JSONMap{"reason": "quiet_hours"}, "", nil)
			continue
		}

		outcomes := d.sendToChannel(ctx, content, ch)
		for _, o := range outcomes {
			if o.OK {
				now := time.Now()
				d.logDelivery(a.ID, ch.ChannelType, o.Recipient, models.DeliveryStatusSent, o.Response, "", &now)
				dispatched++
			} else {
				d.logDelivery(a.ID, ch.ChannelType, o.Recipient, models.DeliveryStatusFailed, o.Response, o.Err, nil)
				failed++
			}
		}
	}

	return dispatched, failed, nil
}

// sendToChannel invokes the channel's adapter, converting a panic or an
// unknown channel type into a failed outcome so the remaining channels
// still get processed.
func (d *Dispatcher) sendToChannel(ctx context.Context, content *Content, ch *models.NotificationChannel) (outcomes []Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Uint("channel_id", ch.ID).
				Interface("panic", r).
				Msg("channel send panicked")
			outcomes = []Outcome{{
				Recipient: d.channelRecipient(ch),
				Err:       fmt.Sprintf("channel send panicked: %v", r),
			}}
		}
	}()

	sender, ok := d.senders[ch.ChannelType]
	if !ok {
		return []Outcome{{
			Recipient: d.channelRecipient(ch),
			Err:       fmt.Sprintf("unknown channel type: %s", ch.ChannelType),
		}}
	}
	return sender.Send(ctx, content, ch)
}

func (d *Dispatcher) channelRecipient(ch *models.NotificationChannel) string {
	cfg, err := models.ParseChannelConfig(ch.ChannelType, ch.Config)
	if err != nil {
		return "unknown"
	}
	return cfg.PrimaryRecipient()
}

// logDelivery appends one audit row. The audit log is a hard requirement;
// a failed insert is itself logged loudly but does not abort the dispatch.
func (d *Dispatcher) logDelivery(alertID uint, channelType models.ChannelType, recipient string, status models.DeliveryStatus, response models.JSONMap, errMsg string, sentAt *time.Time) {
	delivery := models.AlertDelivery{
		AlertID:      alertID,
		ChannelType:  channelType,
		Recipient:    recipient,
		Status:       status,
		ResponseData: response,
		ErrorMessage: errMsg,
		SentAt:       sentAt,
	}
	if err := d.db.Create(&delivery).Error; err != nil {
		d.logger.Error().Err(err).
			Uint("alert_id", alertID).
			Str("channel_type", string(channelType)).
			Msg("failed to record delivery attempt")
	}
}

// ListDeliveries returns the audit trail for one alert, oldest first.
func (d *Dispatcher) ListDeliveries(alertID uint) ([]models.AlertDelivery, error) {
	var deliveries []models.AlertDelivery
	if err := d.db.Where("alert_id = ?", alertID).Order("created_at asc").Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, nil
}
