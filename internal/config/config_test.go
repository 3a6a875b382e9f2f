package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Session.SettleDelay)
	assert.Equal(t, 5*time.Second, cfg.Session.RestartBackoff)
	assert.Equal(t, 0, cfg.Session.MaxRestarts)
	assert.Equal(t, 50, cfg.Session.MessageLimit)
	assert.Equal(t, int64(16<<20), cfg.Media.MaxBytes)
	assert.Equal(t, 30*time.Second, cfg.Media.DownloadTimeout)
	assert.Equal(t, []string{"*"}, cfg.WebSocket.AllowedOrigins)
	assert.True(t, cfg.WhatsApp.AutoStart)
	assert.Empty(t, cfg.Security.APIKeys)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, ":8080", cfg.Server.Address())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "3001")
	t.Setenv("SESSION_SETTLE_DELAY", "750ms")
	t.Setenv("SESSION_MAX_RESTARTS", "3")
	t.Setenv("WS_ALLOWED_ORIGINS", " https://crm.example.com , ,http://localhost:5173")
	t.Setenv("WHATSAPP_PRINT_QR", "false")
	t.Setenv("WS_COMMAND_RATE", "2.5")
	t.Setenv("API_KEYS", "first-secret-key,second-secret-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Session.SettleDelay)
	assert.Equal(t, 3, cfg.Session.MaxRestarts)
	assert.Equal(t, []string{"https://crm.example.com", "http://localhost:5173"}, cfg.WebSocket.AllowedOrigins)
	assert.False(t, cfg.WhatsApp.PrintQR)
	assert.InDelta(t, 2.5, cfg.WebSocket.CommandRate, 0.0001)
	assert.Len(t, cfg.Security.APIKeys, 2)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SESSION_RESTART_BACKOFF", "soon")
	t.Setenv("SESSION_MESSAGE_LIMIT", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Session.RestartBackoff)
	assert.Equal(t, 50, cfg.Session.MessageLimit)
}

func TestValidate_Rejects(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":           "70000",
		"API_KEYS":              "api-key-123",
		"SESSION_MESSAGE_LIMIT": "0",
		"WHATSAPP_HISTORY_SIZE": "10",
		"WS_READ_LIMIT":         "1024",
		"SESSION_MAX_RESTARTS":  "-1",
		"SERVER_RATE_LIMIT":     "0",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
