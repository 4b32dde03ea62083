package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/relay")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("RELAY_REPLAY_LIMIT", "50")
	t.Setenv("RELAY_ACCESS_CACHE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg := New()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 50, cfg.Relay.ReplayLimit)
	assert.Equal(t, 90*time.Second, cfg.Relay.AccessCacheTTL)
}

func TestNewFallsBackOnBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RELAY_REPLAY_LIMIT", "lots")
	t.Setenv("RELAY_ACCESS_CACHE_TTL", "soon")

	cfg := New()

	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, 200, cfg.Relay.ReplayLimit)
	assert.Equal(t, 5*time.Minute, cfg.Relay.AccessCacheTTL)
}
