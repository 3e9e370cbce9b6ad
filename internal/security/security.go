package security

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apperrors "github.com/AnirudhBhanot/flashnew-sub008/internal/errors"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxBodyBytes      int64         `json:"max_body_bytes"`
	MaxStringLength   int           `json:"max_string_length"`
	AllowedOrigins    []string      `json:"allowed_origins"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	EnableHSTS        bool          `json:"enable_hsts"`
	SwaggerPathPrefix string        `json:"swagger_path_prefix"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxBodyBytes:      1 << 20,
		MaxStringLength:   200,
		AllowedOrigins:    []string{"*"},
		RequestTimeout:    30 * time.Second,
		SwaggerPathPrefix: "/swagger/",
	}
}

// SecurityMiddleware bundles the request hardening applied to the API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	def := DefaultSecurityConfig()
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.MaxStringLength <= 0 {
		config.MaxStringLength = def.MaxStringLength
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = def.AllowedOrigins
	}
	if config.SwaggerPathPrefix == "" {
		config.SwaggerPathPrefix = def.SwaggerPathPrefix
	}
	return &SecurityMiddleware{config: config}
}

// Config returns the effective configuration
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

// ValidateFeatureInput checks every key and string value of a raw feature
// object before conversion. Numbers and booleans pass through untouched.
func (sm *SecurityMiddleware) ValidateFeatureInput(raw map[string]any) error {
	for key, value := range raw {
		if err := sm.validateString(key); err != nil {
			return fmt.Errorf("field name %.32q: %w", key, err)
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if err := sm.validateString(s); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

func (sm *SecurityMiddleware) validateString(s string) error {
	if len(s) > sm.config.MaxStringLength {
		return fmt.Errorf("exceeds maximum length of %d characters", sm.config.MaxStringLength)
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("contains invalid characters")
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("contains invalid UTF-8 encoding")
	}
	return nil
}

// ValidateContentType requires JSON on requests that carry a body
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		c.Next()
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		c.Next()
		return
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		appErr := apperrors.NewRequestRejectedError("unsupported content type, expected application/json", http.StatusUnsupportedMediaType)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		return
	}

	c.Next()
}

// LimitBody rejects declared oversize bodies up front and caps the rest while
// they are read
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if c.Request.ContentLength > sm.config.MaxBodyBytes {
		appErr := apperrors.NewRequestRejectedError(
			fmt.Sprintf("request body exceeds %d bytes", sm.config.MaxBodyBytes), http.StatusRequestEntityTooLarge)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		return
	}

	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	}

	c.Next()
}

// RequestTimeout bounds the request context. Handlers observe the deadline
// through ctx.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// exposedHeaders are the response headers browser clients may read
var exposedHeaders = []string{
	"X-Request-ID",
	"X-Cache",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Endpoint-Limit",
	"X-RateLimit-Endpoint-Remaining",
	"Retry-After",
}

// CORS builds the cross-origin policy. A "*" entry allows any origin
// without credentials.
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: exposedHeaders,
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range sm.config.AllowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}

	cfg.AllowOrigins = sm.config.AllowedOrigins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}
