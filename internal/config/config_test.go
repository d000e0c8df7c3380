package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "booking")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, 60, c.AccessTTLMin)
	assert.Equal(t, 7, c.RefreshTTLDays)
	assert.Equal(t, "20K", c.BodyLimit)
	assert.Equal(t, "logs/booking.log", c.AuditLogPath)
	assert.False(t, c.EventsEnabled)
	assert.False(t, c.IsProduction())

	assert.Equal(t, "localhost:6379", c.Redis.address())
	assert.True(t, c.RateLimit.Enabled)
	assert.Equal(t, 60, c.RateLimit.Capacity)
	assert.Equal(t, time.Second, c.RateLimit.RefillInterval)
	assert.Equal(t, 30*time.Second, c.Cache.TTL)
	assert.Equal(t, map[string]bool{"GET": true}, c.Cache.MethodSet())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("CACHE_METHODS", "get, head")

	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSAllowedOrigins)
	assert.Equal(t, "cache:6380", c.Redis.address())
	assert.Equal(t, 5, c.RateLimit.Capacity)
	assert.Equal(t, 1, c.RateLimit.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Second, c.RateLimit.TTL)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Cache.MethodSet())
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing required", func(t *testing.T) {
		t.Setenv("DB_USER", "")
		t.Setenv("DB_NAME", "")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("blank secret", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_SECRET", "   ")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("unknown zone", func(t *testing.T) {
		setRequired(t)
		t.Setenv("APP_TZ", "Mars/Olympus")
		_, err := Load()
		assert.ErrorContains(t, err, "APP_TZ")
	})
}
