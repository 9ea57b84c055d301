package config

import (
	"testing"
	"time"

	"evolution_relay/internal/usecases"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, usecases.FallbackFirstActive, cfg.TenantFallback)
	assert.Equal(t, 30*time.Second, cfg.ChatbotTimeout)
	assert.Equal(t, 4, cfg.DispatchWorkers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TENANT_FALLBACK", usecases.FallbackReject)
	t.Setenv("CHATBOT_TIMEOUT", "5s")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, usecases.FallbackReject, cfg.TenantFallback)
	assert.Equal(t, 5*time.Second, cfg.ChatbotTimeout)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
}

func TestLoadRejectsUnknownFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TENANT_FALLBACK", "guess")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_FALLBACK")
}

func TestValidateReportsVariableNames(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPATCH_WORKERS", "0")
	t.Setenv("EVOLUTION_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISPATCH_WORKERS")
	assert.Contains(t, err.Error(), "EVOLUTION_URL")
}

func TestValidatePublicWebhookURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WEBHOOK_PUBLIC_URL", "relay.example.com/webhook")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEBHOOK_PUBLIC_URL")
}
