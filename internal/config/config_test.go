package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/tt?parseTime=true&multiStatements=true")
	t.Setenv("REAI_BASE_URL", "https://reai.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.ReAI.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReAI.Timeout)
	assert.Equal(t, "UTC", cfg.Timer.Timezone)
	assert.False(t, cfg.Timer.MultiTenant)
	assert.False(t, cfg.Timer.AutoStopOnStart)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("TIMER_TIMEZONE", "Europe/Berlin")
	t.Setenv("TIMER_AUTO_STOP_ON_START", "true")
	t.Setenv("REAI_API_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "Europe/Berlin", cfg.Timer.Timezone)
	assert.True(t, cfg.Timer.AutoStopOnStart)
	assert.Equal(t, "s3cret", cfg.ReAI.APISecret)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("REAI_BASE_URL", "https://reai.example.com")
	t.Setenv("MYSQL_DSN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("MYSQL_DSN", "dsn")
	t.Setenv("REAI_BASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestMultiTenantNeedsJWTSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMER_MULTI_TENANT", "true")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AUTH_JWT_SECRET", "hmac-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Timer.MultiTenant)
}

func TestInvalidTimezoneRejected(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMER_TIMEZONE", "Nowhere/Nothing")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvToKey(t *testing.T) {
	assert.Equal(t, "server.addr", envToKey("SERVER_ADDR"))
	assert.Equal(t, "reai.base_url", envToKey("REAI_BASE_URL"))
	assert.Equal(t, "timer.auto_stop_on_start", envToKey("TIMER_AUTO_STOP_ON_START"))
	assert.Equal(t, "", envToKey("PATH"))
	assert.Equal(t, "", envToKey("HOME_DIR"))
}
