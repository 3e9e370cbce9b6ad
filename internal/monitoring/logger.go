package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the service's structured logger. Event helpers keep message
// names and attribute keys stable for log queries.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout at level
func NewLogger(level slog.Level) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a JSON logger writing to w. The time attribute is
// renamed to timestamp and truncated to seconds.
func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.TimeKey || len(groups) > 0 {
				return a
			}
			return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339))
		},
	})
	return &Logger{Logger: slog.New(handler)}
}

// RequestInfo describes one finished HTTP exchange
type RequestInfo struct {
	RequestID string
	Method    string
	Route     string // route template, not the raw path
	IP        string
	UserAgent string
	Status    int
	Duration  time.Duration
}

// RequestLogger logs a finished request; server errors are logged at error level
func (l *Logger) RequestLogger(r RequestInfo) {
	level := slog.LevelInfo
	if r.Status >= 500 {
		level = slog.LevelError
	}
	l.Log(context.Background(), level, "HTTP Request",
		"request_id", r.RequestID,
		"method", r.Method,
		"route", r.Route,
		"ip", r.IP,
		"user_agent", r.UserAgent,
		"status_code", r.Status,
		"duration_ms", r.Duration.Milliseconds(),
	)
}

// PredictionLogger logs one completed ensemble prediction
func (l *Logger) PredictionLogger(predictionID, verdict string, probability, confidence float64, modelsUsed, modelsTotal int, degraded bool, duration time.Duration) {
	level := slog.LevelInfo
	if degraded {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "Prediction Completed",
		"prediction_id", predictionID,
		"verdict", verdict,
		"probability", probability,
		"confidence", confidence,
		"models_used", modelsUsed,
		"models_total", modelsTotal,
		"degraded", degraded,
		"duration_ms", duration.Milliseconds(),
	)
}

// ModelExclusionLogger logs a model left out of the ensemble
func (l *Logger) ModelExclusionLogger(model, reason string, err error) {
	l.Warn("Model Excluded",
		"model", model,
		"reason", reason,
		"error", err,
	)
}

// APIErrorLogger logs an error attached to a request via c.Error
func (l *Logger) APIErrorLogger(requestID string, err error, route string, status int) {
	l.Error("API Error",
		"request_id", requestID,
		"error", err.Error(),
		"route", route,
		"status_code", status,
	)
}

// SystemLogger logs process lifecycle events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(processStart).Round(time.Second).String(),
	)
}

// SecurityLogger logs a request that matched a suspicious pattern
func (l *Logger) SecurityLogger(event, ip, userAgent string, details map[string]interface{}) {
	attrs := make([]any, 0, 6+2*len(details))
	attrs = append(attrs, "event", event, "ip", ip, "user_agent", userAgent)
	for key, value := range details {
		attrs = append(attrs, key, value)
	}
	l.Warn("Security Event", attrs...)
}

var processStart = time.Now()
