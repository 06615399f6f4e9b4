package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/auth-service/internal/config"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveRateLimit("login", true)
	m.ObserveRateLimit("login", false)
	m.ObserveRateLimit("login", false)
	m.ObserveAuth("login", "invalid_credentials")
	m.RecordError("/auth/login", http.MethodPost, "RATE_LIMITED")
	m.RecordRequest("/auth/login", http.MethodPost, 429, 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rateLimitTotal.WithLabelValues("login", "limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimitTotal.WithLabelValues("login", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authTotal.WithLabelValues("login", "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("/auth/login", http.MethodPost, "RATE_LIMITED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/auth/login", http.MethodPost, "429")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRateLimit("login", true)
		m.ObserveAuth("login", "ok")
		m.RecordRequest("/", http.MethodGet, 200, time.Millisecond)
		m.RecordError("/", http.MethodGet, "X")
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/missing", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNotFound) })

	for _, path := range []string{"/ping", "/missing"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	entries := logs.FilterMessage("http_request_finished").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 404, entries[1].ContextMap()["status"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/ping", http.MethodGet, "200")))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
