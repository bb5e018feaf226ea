package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.Equal(t, time.Hour, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 0.1, cfg.GeminiTemperature)
	assert.Equal(t, 8192, cfg.GeminiMaxTokens)
	assert.False(t, cfg.SplunkVerifyTLS)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("RATE_LIMIT_REQUESTS", "7")
	t.Setenv("RATE_LIMIT_WINDOW", "60")
	t.Setenv("GEMINI_TEMPERATURE", "0.7")
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("SPLUNK_VERIFY_TLS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 7, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 0.7, cfg.GeminiTemperature)
	assert.Equal(t, "9999", cfg.ServerPort)
	assert.True(t, cfg.SplunkVerifyTLS)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CACHE_TTL", "not-a-number")
	t.Setenv("GEMINI_TEMPERATURE", "warm")
	t.Setenv("SPLUNK_VERIFY_TLS", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.1, cfg.GeminiTemperature)
	assert.False(t, cfg.SplunkVerifyTLS)
}
