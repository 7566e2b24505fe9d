package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/targetspro/adwatch/internal/models"
)

func TestWhatsAppSenderTemplateMessage(t *testing.T) {
	db := testDB(t)

	user := models.User{
		OrgID: 1, Username: "sara", Role: models.RoleManager,
		IsActive: true, WhatsAppOptIn: true, WhatsAppPhone: "+201000000001",
		Email: "sara@example.com", ApiKey: "k1",
	}
	require.NoError(t, db.Create(&user).Error)

	var gotPath, gotAuth string
	var gotReq whatsAppTemplateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]interface{}{{"id": "wamid.1"}},
		})
	}))
	defer server.Close()

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelWhatsApp,
		Config: models.JSONMap{
			"recipients": []interface{}{
				map[string]interface{}{"user_id": float64(user.ID), "phone": "+201999999999"},
			},
		},
	}

	sender := NewWhatsAppSender(db, server.URL, "phone-42", "access-token", "account_alert")
	outcomes := sender.Send(context.Background(), testContent(), channel)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)
	// Profile phone wins over the channel row phone.
	assert.Equal(t, "+201000000001", outcomes[0].Recipient)

	assert.Equal(t, "/phone-42/messages", gotPath)
	assert.Equal(t, "Bearer access-token", gotAuth)
	assert.Equal(t, "whatsapp", gotReq.MessagingProduct)
	assert.Equal(t, "+201000000001", gotReq.To)
	assert.Equal(t, "template", gotReq.Type)
	assert.Equal(t, "account_alert", gotReq.Template.Name)
	assert.Equal(t, "en", gotReq.Template.Language.Code)
	require.Len(t, gotReq.Template.Components, 1)
	assert.Len(t, gotReq.Template.Components[0].Parameters, 5)
	assert.Equal(t, "CRITICAL", gotReq.Template.Components[0].Parameters[0].Text)
}

func TestWhatsAppSenderSkipsWithoutConsent(t *testing.T) {
	db := testDB(t)

	inactive := models.User{
		OrgID: 1, Username: "omar", Role: models.RoleManager,
		IsActive: true, WhatsAppOptIn: false, WhatsAppPhone: "+201000000002",
		Email: "omar@example.com", ApiKey: "k2",
	}
	require.NoError(t, db.Create(&inactive).Error)

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelWhatsApp,
		Config: models.JSONMap{
			"recipients": []interface{}{
				map[string]interface{}{"user_id": float64(inactive.ID), "phone": "+201000000002"},
				map[string]interface{}{"user_id": float64(9999), "phone": "+201000000003"},
			},
		},
	}

	sender := NewWhatsAppSender(db, "https://graph.example.com", "phone-42", "access-token", "account_alert")
	outcomes := sender.Send(context.Background(), testContent(), channel)
	assert.Empty(t, outcomes)
}
