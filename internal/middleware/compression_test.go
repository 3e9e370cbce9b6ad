package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(cm *CompressionMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/large", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Repeat("camp ", 1000))
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", make([]byte, 4096))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCompression(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		acceptEncoding string
		wantGzip       bool
		wantStatus     int
	}{
		{"large body gzipped", "/large", "gzip, deflate", true, http.StatusOK},
		{"client without gzip", "/large", "", false, http.StatusOK},
		{"gzip refused with q=0", "/large", "gzip;q=0", false, http.StatusOK},
		{"small body left alone", "/small", "gzip", false, http.StatusOK},
		{"binary content type left alone", "/binary", "gzip", false, http.StatusOK},
		{"no body", "/empty", "gzip", false, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(NewCompressionMiddleware(DefaultCompressionConfig()))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if !tt.wantGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				return
			}

			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

			zr, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, strings.Repeat("camp ", 1000), string(body))
		})
	}
}

func TestCompressionSmallBodyIntact(t *testing.T) {
	r := newRouter(NewCompressionMiddleware(DefaultCompressionConfig()))
	req := httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCompressionStats(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	r := newRouter(cm)

	for _, path := range []string{"/large", "/small"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	stats := cm.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["compressed_requests"])
	ratio, ok := stats["compression_ratio"].(float64)
	require.True(t, ok)
	assert.Greater(t, ratio, 0.0)
	assert.Less(t, ratio, 0.1)
}

func TestPooledWritersAreReused(t *testing.T) {
	cm := NewCompressionMiddleware(CompressionConfig{MinSize: 1, CompressionLevel: 99, ContentTypes: []string{"text/plain"}})
	r := newRouter(cm)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/large", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Len(t, body, 5000)
	}
}
