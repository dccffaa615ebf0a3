package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/obligations/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	require.True(t, cfg.FeeDefault.Equal(decimal.RequireFromString("5")))
	require.Equal(t, 30, cfg.SettleRateLimit)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "sqlite")
}

func TestLoadConfigParsesFeeDefault(t *testing.T) {
	t.Setenv("FEE_DEFAULT", "12.75")
	t.Setenv("APP_ENV", "production")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.FeeDefault.Equal(decimal.RequireFromString("12.75")))
	require.True(t, cfg.IsProduction())
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("hello")
	require.Contains(t, buf.String(), `"msg":"hello"`)
	require.Contains(t, buf.String(), `"service":"obligations"`)
	require.Contains(t, buf.String(), `"env":"production"`)

	buf.Reset()
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Debug("hidden")
	require.Empty(t, buf.String())

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty"}, &buf).Debug("hello")
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "env=development")
}

type pingHandler struct{}

func (pingHandler) MountRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
}

func TestRouterServesHealthMetricsAndHandlers(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Config:   &Config{},
		Metrics:  metrics,
		Handlers: []RouteMounter{pingHandler{}},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, "pong", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "obligations_http_requests_total")
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
