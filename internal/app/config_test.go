package app

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "STORAGE_BACKEND", "APP_ENV", "APP_ADDR", "SESSION_TTL", "BALANCE_CACHE_TTL", "INTEGRITY_CRON", "PG_DSN", "REDIS_ADDR")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.True(t, cfg.UsesPostgres())
	require.False(t, cfg.IsProduction())
	require.Equal(t, 720*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.BalanceCacheTTL)
	require.Equal(t, "0 3 * * *", cfg.IntegrityCron)
}

func TestLoadConfigMemoryBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", " Memory ")
	t.Setenv("APP_ENV", "production")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.StorageBackend)
	require.False(t, cfg.UsesPostgres())
	require.True(t, cfg.IsProduction())
	require.Equal(t, 30, cfg.RateLimitPerMinute)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]Config{
		"unknown backend": {StorageBackend: "sqlite", RedisAddr: "x", SessionTTL: time.Hour},
		"missing dsn":     {StorageBackend: StoragePostgres, RedisAddr: "x", SessionTTL: time.Hour},
		"missing redis":   {StorageBackend: StorageMemory, SessionTTL: time.Hour},
		"zero ttl":        {StorageBackend: StorageMemory, RedisAddr: "x"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, cfg.Validate())
		})
	}
	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.HasPrefix(out, "{"), out)
	require.Contains(t, out, `"k":"v"`)
}
