package monitoring

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the correlation id in both directions
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the id
	RequestIDKey = "request_id"

	maxRequestIDLen = 64
)

// RequestID returns the correlation id assigned by MonitoringMiddleware
func RequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// MonitoringMiddleware assigns a request id, then records latency and status
// per request. Unmatched paths are logged under one route so scanners cannot
// flood the logs with distinct paths.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, id)
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(status)
		if status >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(RequestInfo{
			RequestID: id,
			Method:    c.Request.Method,
			Route:     route,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Status:    status,
			Duration:  duration,
		})
		for _, err := range c.Errors {
			logger.APIErrorLogger(id, err.Err, route, status)
		}
	}
}

// SecurityMonitoringMiddleware logs requests that look like probing. It
// never blocks; rejection is left to the security middleware.
func SecurityMonitoringMiddleware(logger *Logger, maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		var findings map[string]interface{}
		flag := func(kind string, key string, value interface{}) {
			if findings == nil {
				findings = make(map[string]interface{})
			}
			findings["type"] = kind
			findings[key] = value
		}

		if looksLikeSQLInjection(c.Request.URL.RawQuery) {
			flag("potential_sql_injection", "query", c.Request.URL.RawQuery)
		}
		if maxBodyBytes > 0 && c.Request.ContentLength > maxBodyBytes {
			flag("large_request_body", "size_bytes", c.Request.ContentLength)
		}
		if ua := c.Request.UserAgent(); isScannerAgent(ua) {
			flag("suspicious_user_agent", "user_agent", ua)
		}

		if findings != nil {
			logger.SecurityLogger("suspicious_activity_detected", c.ClientIP(), c.Request.UserAgent(), findings)
		}
		c.Next()
	}
}

var sqlInjectionMarkers = []string{
	"union select",
	"union all",
	"select * from",
	"drop table",
	"delete from",
	"';--",
	"/*",
	" xp_",
}

var scannerAgents = []string{"sqlmap", "nmap", "masscan", "zmap", "dirbuster", "gobuster", "nikto", "acunetix"}

func looksLikeSQLInjection(rawQuery string) bool {
	q := rawQuery
	if decoded, err := url.QueryUnescape(rawQuery); err == nil {
		q = decoded
	}
	q = strings.ToLower(q)
	for _, marker := range sqlInjectionMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

func isScannerAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, agent := range scannerAgents {
		if strings.Contains(ua, agent) {
			return true
		}
	}
	return false
}
