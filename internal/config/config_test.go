package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("RATE_LIMIT_STORE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4001", cfg.App.Port)
	assert.Equal(t, DevelopmentJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.Equal(t, LimitPolicy{Points: 5, WindowSeconds: 60, BlockSeconds: 900}, cfg.RateLimit.Login)
	assert.Equal(t, LimitPolicy{Points: 100, WindowSeconds: 60, BlockSeconds: 0}, cfg.RateLimit.General)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Login.Block())
	assert.Zero(t, cfg.RateLimit.General.Block())
	assert.Equal(t, 256, cfg.Notification.QueueSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("AUTH_RESET_SECRET", "reset-s3cret")
	t.Setenv("RATE_LIMIT_STORE", "MEMORY")
	t.Setenv("RATE_LIMIT_LOGIN_POINTS", "3")
	t.Setenv("NOTIFY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("NOTIFY_QUEUE_SIZE", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, 3, cfg.RateLimit.Login.Points)
	assert.Equal(t, "reset-s3cret", cfg.Auth.ResetHashSecret())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notification.KafkaBrokers)
	assert.Equal(t, 16, cfg.Notification.QueueSize)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:  AppConfig{Env: "production"},
			Auth: AuthConfig{JWTSecret: "prod-secret"},
			RateLimit: RateLimitConfig{
				Store:   "redis",
				Login:   LimitPolicy{Points: 5, WindowSeconds: 60, BlockSeconds: 900},
				General: LimitPolicy{Points: 100, WindowSeconds: 60},
			},
		}
	}

	t.Run("valid production config", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("development secret refused in production", func(t *testing.T) {
		cfg := base()
		cfg.Auth.JWTSecret = DevelopmentJWTSecret
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := base()
		cfg.RateLimit.Store = "memcached"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive points", func(t *testing.T) {
		cfg := base()
		cfg.RateLimit.General.Points = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestAuthConfig_Fallbacks(t *testing.T) {
	a := AuthConfig{JWTSecret: "jwt"}
	assert.Equal(t, "jwt", a.ResetHashSecret())
	assert.Equal(t, 5*time.Second, a.StoreTimeout())
}
