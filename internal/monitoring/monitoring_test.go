package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.Equal(t, 99*time.Millisecond, m.GetPercentileResponseTime(99))
	assert.Equal(t, time.Duration(0), NewMetrics().GetPercentileResponseTime(50))
}

func TestMetricsResponseSamplesAreBounded(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < maxResponseSamples+50; i++ {
		m.RecordResponseTime(time.Millisecond)
	}
	assert.Equal(t, maxResponseSamples, m.http.len())
	assert.Equal(t, int64(maxResponseSamples+50), m.http.count.Load())
}

func TestLatencySummaryCoversRetainedWindow(t *testing.T) {
	m := NewMetrics()
	// one slow early outlier is pushed out by the fast samples after it
	m.RecordResponseTime(10 * time.Second)
	for i := 0; i < maxResponseSamples; i++ {
		m.RecordResponseTime(2 * time.Millisecond)
	}

	rt, ok := m.GetStats()["response_time"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, maxResponseSamples, rt["samples"])
	assert.InDelta(t, 2.0, rt["avg_ms"], 1e-9)
	assert.InDelta(t, 2.0, rt["p99_ms"], 1e-9)
}

func TestPredictionObserver(t *testing.T) {
	var buf bytes.Buffer
	m := NewMetrics()
	obs := NewPredictionObserver(m, NewLoggerTo(&buf, slog.LevelDebug))

	obs.PredictionCompleted(&analysis.PredictionResult{
		PredictionID:       "p-1",
		SuccessProbability: 0.649,
		Verdict:            scoring.VerdictConditionalPass,
		ModelsUsed:         3,
		ModelsTotal:        4,
		Degraded:           true,
	}, 5*time.Millisecond)
	obs.ModelExcluded("temporal", analysis.ReasonInvocation, errors.New("boom"))
	obs.PredictionFailed(analysis.ErrPredictionUnavailable)

	stats := m.GetPredictionStats()
	assert.Equal(t, int64(1), stats["total"])
	assert.Equal(t, int64(1), stats["degraded"])
	assert.Equal(t, int64(1), stats["unavailable"])
	assert.Equal(t, map[string]int64{"CONDITIONAL PASS": 1}, stats["verdicts"])
	assert.Equal(t, map[string]map[string]int64{"temporal": {"invocation": 1}}, stats["model_exclusions"])
	assert.InDelta(t, 0.649, stats["mean_probability"], 1e-9)
	latency, ok := stats["latency"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 5.0, latency["p50_ms"], 1e-9)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Prediction Completed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "p-1", entry["prediction_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestMonitoringMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMetrics()
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	router := gin.New()
	router.Use(MonitoringMiddleware(m, logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	for _, path := range []string{"/ok", "/ok", "/fail"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, int64(3), m.Requests())
	assert.Equal(t, int64(1), m.Errors())
	assert.Equal(t, map[int]int64{200: 2, 503: 1}, m.GetStatusCodeDistribution())
	assert.Contains(t, buf.String(), "HTTP Request")

	stats := m.GetStats()
	assert.InDelta(t, 33.33, stats["error_rate_percent"], 0.01)
	assert.Contains(t, stats, "predictions")
}

func TestMonitoringMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(MonitoringMiddleware(NewMetrics(), NewLoggerTo(&buf, slog.LevelInfo)))
	router.GET("/items/:id", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/items/43", nil)
	req.Header.Set(RequestIDHeader, "caller-7")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "caller-7", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/items/44", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	var entry map[string]any
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	require.NoError(t, json.Unmarshal([]byte(first), &entry))
	assert.Equal(t, "/items/:id", entry["route"])
	assert.Equal(t, generated, entry["request_id"])
}

func TestSecurityMonitoringFlagsSuspiciousRequests(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		userAgent string
		flagged   bool
	}{
		{"clean", "/api/v1/predict", "curl/8.0", false},
		{"sql in query", "/api/v1/predictions?limit=1%20UNION%20SELECT%20*", "curl/8.0", true},
		{"scanner agent", "/health", "sqlmap/1.7", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			router := gin.New()
			router.Use(SecurityMonitoringMiddleware(NewLoggerTo(&buf, slog.LevelInfo), 1024))
			router.Any("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Header.Set("User-Agent", tt.userAgent)
			router.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.flagged, strings.Contains(buf.String(), "Security Event"))
		})
	}
}
