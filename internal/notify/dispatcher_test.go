package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/targetspro/adwatch/internal/database"
	"github.com/targetspro/adwatch/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Each pooled connection would get its own in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// fakeSender answers every send with a fixed outcome list.
type fakeSender struct {
	outcomes []Outcome
	calls    int
}

func (s *fakeSender) Send(_ context.Context, _ *Content, _ *models.NotificationChannel) []Outcome {
	s.calls++
	return s.outcomes
}

// alwaysQuiet covers the whole day so quiet-hours suppression is
// deterministic regardless of when the test runs.
var alwaysQuiet = &models.TimeWindow{Start: "00:00", End: "24:00", Timezone: "UTC"}

func seedDispatchAlert(t *testing.T, db *gorm.DB, severity models.Severity) *models.Alert {
	t.Helper()

	account := &models.AdAccount{
		OrgID:          1,
		AccountName:    "Acme Campaigns",
		Platform:       "facebook",
		Currency:       "EGP",
		CurrentBalance: "42.00",
	}
	require.NoError(t, db.Create(account).Error)

	rule := &models.AlertRule{
		OrgID:    1,
		Name:     "low balance",
		RuleType: models.RuleBalanceThreshold,
		Severity: severity,
		IsActive: true,
		Config:   models.JSONMap{"threshold_value": 100.0},
	}
	require.NoError(t, db.Create(rule).Error)

	alert := &models.Alert{
		OrgID:       1,
		AdAccountID: account.ID,
		AlertRuleID: rule.ID,
		Severity:    severity,
		Status:      models.AlertStatusPending,
		Title:       "Low Balance: Acme Campaigns",
		Message:     "Balance is EGP 42 (threshold: 100)",
		Reference:   "ref-dispatch",
		ContextData: models.JSONMap{"balance": 42.0},
	}
	require.NoError(t, db.Create(alert).Error)
	return alert
}

func seedChannel(t *testing.T, db *gorm.DB, channelType models.ChannelType, minSeverity models.Severity, window *models.TimeWindow, config models.JSONMap) *models.NotificationChannel {
	t.Helper()
	channel := &models.NotificationChannel{
		OrgID:       1,
		Name:        string(channelType) + " channel",
		ChannelType: channelType,
		MinSeverity: minSeverity,
		IsEnabled:   true,
		ActiveHours: window,
		Config:      config,
	}
	require.NoError(t, db.Create(channel).Error)
	return channel
}

func deliveriesFor(t *testing.T, db *gorm.DB, alertID uint) []models.AlertDelivery {
	t.Helper()
	var deliveries []models.AlertDelivery
	require.NoError(t, db.Where("alert_id = ?", alertID).Find(&deliveries).Error)
	return deliveries
}

func TestDispatchRecordsOutcomes(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityWarning)
	seedChannel(t, db, models.ChannelEmail, models.SeverityInfo, nil,
		models.JSONMap{"recipients": []interface{}{"ops@example.com"}})
	seedChannel(t, db, models.ChannelTelegram, models.SeverityInfo, nil,
		models.JSONMap{"chat_id": "-100123"})

	emailSender := &fakeSender{outcomes: []Outcome{
		{Recipient: "ops@example.com", OK: true, Response: models.JSONMap{"recipients": 1.0}},
	}}
	telegramSender := &fakeSender{outcomes: []Outcome{
		{Recipient: "-100123", Err: "bot was blocked"},
	}}

	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{
		models.ChannelEmail:    emailSender,
		models.ChannelTelegram: telegramSender,
	}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 1, failed)

	deliveries := deliveriesFor(t, db, alert.ID)
	require.Len(t, deliveries, 2)

	byChannel := map[models.ChannelType]models.AlertDelivery{}
	for _, d := range deliveries {
		byChannel[d.ChannelType] = d
	}

	email := byChannel[models.ChannelEmail]
	assert.Equal(t, models.DeliveryStatusSent, email.Status)
	assert.Equal(t, "ops@example.com", email.Recipient)
	assert.NotNil(t, email.SentAt)

	telegram := byChannel[models.ChannelTelegram]
	assert.Equal(t, models.DeliveryStatusFailed, telegram.Status)
	assert.Equal(t, "bot was blocked", telegram.ErrorMessage)
	assert.Nil(t, telegram.SentAt)
}

func TestDispatchSeverityFilter(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityWarning)
	seedChannel(t, db, models.ChannelEmail, models.SeverityCritical, nil,
		models.JSONMap{"recipients": []interface{}{"ops@example.com"}})

	sender := &fakeSender{outcomes: []Outcome{{Recipient: "ops@example.com", OK: true}}}
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{
		models.ChannelEmail: sender,
	}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, sender.calls)

	// A below-threshold channel is skipped silently, without an audit row.
	assert.Empty(t, deliveriesFor(t, db, alert.ID))
}

func TestDispatchQuietHours(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityWarning)
	seedChannel(t, db, models.ChannelEmail, models.SeverityInfo, alwaysQuiet,
		models.JSONMap{"recipients": []interface{}{"ops@example.com"}})

	sender := &fakeSender{outcomes: []Outcome{{Recipient: "ops@example.com", OK: true}}}
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{
		models.ChannelEmail: sender,
	}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, sender.calls)

	deliveries := deliveriesFor(t, db, alert.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusQueued, deliveries[0].Status)
	assert.Equal(t, "ops@example.com", deliveries[0].Recipient)
	assert.Equal(t, "quiet_hours", deliveries[0].ResponseData["reason"])
}

func TestDispatchEmergencyBypassesQuietHours(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityEmergency)
	seedChannel(t, db, models.ChannelEmail, models.SeverityInfo, alwaysQuiet,
		models.JSONMap{"recipients": []interface{}{"ops@example.com"}})

	sender := &fakeSender{outcomes: []Outcome{{Recipient: "ops@example.com", OK: true}}}
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{
		models.ChannelEmail: sender,
	}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, sender.calls)

	deliveries := deliveriesFor(t, db, alert.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusSent, deliveries[0].Status)
}

func TestDispatchUnknownChannelType(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityWarning)
	seedChannel(t, db, models.ChannelWebhook, models.SeverityInfo, nil,
		models.JSONMap{"url": "https://example.com/hook"})

	// No webhook sender registered.
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 1, failed)

	deliveries := deliveriesFor(t, db, alert.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusFailed, deliveries[0].Status)
	assert.Contains(t, deliveries[0].ErrorMessage, "unknown channel type")
}

func TestDispatchUnknownAlert(t *testing.T) {
	db := testDB(t)
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{}, "UTC", "https://app.example.com", zerolog.Nop())

	_, _, err := dispatcher.Dispatch(context.Background(), 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// Consent gating runs inside the WhatsApp adapter: recipients without an
// opted-in, active profile produce no outcome and therefore no audit row.
func TestDispatchWhatsAppConsent(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityWarning)

	optedIn := models.User{
		OrgID: 1, Username: "sara", Role: models.RoleManager,
		IsActive: true, WhatsAppOptIn: true, WhatsAppPhone: "+201000000001",
		Email: "sara@example.com", ApiKey: "k1",
	}
	optedOut := models.User{
		OrgID: 1, Username: "omar", Role: models.RoleManager,
		IsActive: true, WhatsAppOptIn: false,
		Email: "omar@example.com", ApiKey: "k2",
	}
	require.NoError(t, db.Create(&optedIn).Error)
	require.NoError(t, db.Create(&optedOut).Error)

	seedChannel(t, db, models.ChannelWhatsApp, models.SeverityInfo, nil, models.JSONMap{
		"recipients": []interface{}{
			// The opted-in profile's saved phone overrides the row phone.
			map[string]interface{}{"user_id": float64(optedIn.ID), "phone": "+201999999999"},
			map[string]interface{}{"user_id": float64(optedOut.ID), "phone": "+201000000002"},
		},
	})

	// No API credentials: the consented recipient fails loudly, which still
	// proves consent filtering because only one outcome row exists.
	whatsapp := NewWhatsAppSender(db, "https://graph.example.com", "", "", "account_alert")
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{
		models.ChannelWhatsApp: whatsapp,
	}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 1, failed)

	deliveries := deliveriesFor(t, db, alert.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "+201000000001", deliveries[0].Recipient)
	assert.Equal(t, models.DeliveryStatusFailed, deliveries[0].Status)
	assert.Contains(t, deliveries[0].ErrorMessage, "credentials")
}

func TestDispatchDisabledChannelSkipped(t *testing.T) {
	db := testDB(t)
	alert := seedDispatchAlert(t, db, models.SeverityWarning)
	channel := seedChannel(t, db, models.ChannelEmail, models.SeverityInfo, nil,
		models.JSONMap{"recipients": []interface{}{"ops@example.com"}})
	require.NoError(t, db.Model(channel).Update("is_enabled", false).Error)

	sender := &fakeSender{outcomes: []Outcome{{Recipient: "ops@example.com", OK: true}}}
	dispatcher := NewDispatcher(db, map[models.ChannelType]Sender{
		models.ChannelEmail: sender,
	}, "UTC", "https://app.example.com", zerolog.Nop())

	dispatched, failed, err := dispatcher.Dispatch(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, sender.calls)
	assert.Empty(t, deliveriesFor(t, db, alert.ID))
}
