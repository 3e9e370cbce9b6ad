package security

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// apiPolicy forbids everything; JSON responses never load subresources.
const apiPolicy = "default-src 'none'; frame-ancestors 'none'"

// swaggerPolicy lets the bundled Swagger UI run its inline bootstrap.
const swaggerPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'"

// SecurityHeaders adds security headers to all responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	if strings.HasPrefix(c.Request.URL.Path, sm.config.SwaggerPathPrefix) {
		c.Header("Content-Security-Policy", swaggerPolicy)
	} else {
		c.Header("Content-Security-Policy", apiPolicy)
	}

	if sm.config.EnableHSTS {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}

	c.Next()
}
