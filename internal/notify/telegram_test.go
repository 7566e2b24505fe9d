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

func telegramChannel() *models.NotificationChannel {
	return &models.NotificationChannel{
		ChannelType: models.ChannelTelegram,
		Config:      models.JSONMap{"chat_id": "-100123"},
	}
}

func TestTelegramSenderSuccess(t *testing.T) {
	var gotPath string
	var gotReq telegramRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": map[string]interface{}{"message_id": 7}})
	}))
	defer server.Close()

	sender := NewTelegramSender("bot-token", server.URL)
	outcomes := sender.Send(context.Background(), testContent(), telegramChannel())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)
	assert.Equal(t, "-100123", outcomes[0].Recipient)

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "-100123", gotReq.ChatID)
	assert.Equal(t, "HTML", gotReq.ParseMode)
	assert.Contains(t, gotReq.Text, "Low Balance: Acme Campaigns")
}

func TestTelegramSenderAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "bot was blocked by the user"})
	}))
	defer server.Close()

	sender := NewTelegramSender("bot-token", server.URL)
	outcomes := sender.Send(context.Background(), testContent(), telegramChannel())

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].OK)
	assert.Equal(t, "bot was blocked by the user", outcomes[0].Err)
	assert.Equal(t, false, outcomes[0].Response["ok"])
}

func TestTelegramSenderMissingToken(t *testing.T) {
	sender := NewTelegramSender("", "https://api.telegram.org")
	outcomes := sender.Send(context.Background(), testContent(), telegramChannel())

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].OK)
	assert.Contains(t, outcomes[0].Err, "not configured")
}
