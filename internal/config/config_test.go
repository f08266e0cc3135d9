package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "STORE_DRIVER", "CACHE_DRIVER", "SESSION_TTL", "MAX_SESSIONS", "MAX_ROUTING_HOPS", "STRICT_REPLAY", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, CacheMemory, cfg.CacheDriver)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 4096, cfg.MaxSessions)
	assert.Equal(t, 32, cfg.MaxRoutingHops)
	assert.False(t, cfg.StrictReplay)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MONGO")
	t.Setenv("CACHE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis://cache:6379")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("STRICT_REPLAY", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.StrictReplay)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"STORE_DRIVER":     "postgres",
		"CACHE_DRIVER":     "memcached",
		"MAX_SESSIONS":     "lots",
		"SESSION_TTL":      "forever",
		"STRICT_REPLAY":    "maybe",
		"MAX_ROUTING_HOPS": "0",
		"LOG_LEVEL":        "chatty",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
