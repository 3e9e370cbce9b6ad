package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/config"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/monitoring"
)

const scenarioA = `{
	"funding_stage": "Series A",
	"total_capital_raised_usd": 5000000,
	"team_size_full_time": 25,
	"annual_revenue_run_rate": 2000000,
	"revenue_growth_rate_percent": 150,
	"gross_margin_percent": 70
}`

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t testing.TB) config.Config {
	t.Helper()
	return config.Config{
		Port:     "0",
		DataDir:  t.TempDir(),
		LogLevel: slog.LevelError,
		Models: config.ModelsConfig{
			ManifestPath:     "../../models/manifest.yaml",
			Concurrency:      4,
			BreakerThreshold: 5,
			BreakerCooldown:  time.Second,
		},
		RateLimit: config.RateLimitConfig{PerMinute: 1000, Burst: 10},
		Cache:     config.CacheConfig{TTL: time.Minute, MaxEntries: 100, Persist: true},
		HTTP: config.HTTPConfig{
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
			MaxBodyBytes:    1 << 16,
			AllowedOrigins:  []string{"*"},
		},
	}
}

func quietLogger() *monitoring.Logger {
	return monitoring.NewLoggerTo(io.Discard, slog.LevelError)
}

func startApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.close()) })
	return a
}

func serve(a *app, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.server.Router().ServeHTTP(w, req)
	return w
}

func TestShippedManifestEndToEnd(t *testing.T) {
	a := startApp(t, testConfig(t))

	health := serve(a, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, health.Code, health.Body.String())

	var status map[string]any
	require.NoError(t, json.Unmarshal(health.Body.Bytes(), &status))
	assert.Equal(t, "2024.11.1", status["manifest_version"])
	assert.Equal(t, float64(4), status["models_loaded"])

	w := serve(a, http.MethodPost, "/api/v1/predict", scenarioA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		ID          string  `json:"prediction_id"`
		Probability float64 `json:"success_probability"`
		Verdict     string  `json:"verdict"`
		ModelsUsed  int     `json:"models_used"`
		Stage       string  `json:"funding_stage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.GreaterOrEqual(t, result.Probability, 0.5)
	assert.LessOrEqual(t, result.Probability, 0.85)
	assert.Contains(t, []string{"PASS", "CONDITIONAL PASS"}, result.Verdict)
	assert.Equal(t, 4, result.ModelsUsed)
	assert.Equal(t, "series_a", result.Stage)

	stored := serve(a, http.MethodGet, "/api/v1/predictions/"+result.ID, "")
	assert.Equal(t, http.StatusOK, stored.Code, stored.Body.String())

	cached := serve(a, http.MethodPost, "/api/v1/predict", scenarioA)
	assert.Equal(t, "HIT", cached.Header().Get("X-Cache"))
}

func TestPersistenceDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Persist = false
	a := startApp(t, cfg)

	assert.Nil(t, a.db)
	assert.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/api/v1/predictions", "").Code)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/v1/predict", scenarioA).Code)
}

func TestUnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	a := startApp(t, cfg)

	assert.False(t, a.redis.IsEnabled())
	assert.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/v1/predict", scenarioA).Code)
}

func TestProfilingRoutes(t *testing.T) {
	cfg := testConfig(t)

	a := startApp(t, cfg)
	assert.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/debug/pprof/", "").Code)

	cfg.HTTP.EnableProfiling = true
	profiled := startApp(t, cfg)
	assert.Equal(t, http.StatusOK, serve(profiled, http.MethodGet, "/debug/pprof/", "").Code)
	assert.Equal(t, http.StatusOK, serve(profiled, http.MethodGet, "/debug/pprof/cmdline", "").Code)
}

func TestManifestHotReloadWired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Models.WatchManifest = true
	a := startApp(t, cfg)

	require.NotNil(t, a.watcher)
	require.NotNil(t, a.watcher.OnReload)
}

func TestStartupFailsFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing manifest", func(c *config.Config) { c.Models.ManifestPath = filepath.Join(t.TempDir(), "absent.yaml") }},
		{"unwritable data dir", func(c *config.Config) { c.DataDir = "/dev/null/camp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			a, err := newApp(context.Background(), cfg, quietLogger())
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}
