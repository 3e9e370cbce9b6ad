package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // gzip level; out-of-range values use gzip.DefaultCompression
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
		},
	}
}

// CompressionMiddleware gzips responses for clients that accept it
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	if config.MinSize < 0 {
		config.MinSize = 0
	}
	if config.CompressionLevel < gzip.HuffmanOnly || config.CompressionLevel > gzip.BestCompression {
		config.CompressionLevel = gzip.DefaultCompression
	}

	cm := &CompressionMiddleware{config: config, stats: &CompressionStats{}}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, cm.config.CompressionLevel)
		return gz
	}
	return cm
}

// Handler returns the gin middleware. Output is buffered until MinSize
// bytes are written so short bodies go out uncompressed.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !clientAcceptsGzip(c.Request) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		original := c.Writer
		gzw := &gzipResponseWriter{ResponseWriter: original, cm: cm}
		c.Writer = gzw
		defer func() {
			gzw.finish()
			c.Writer = original
		}()

		c.Next()
	}
}

func clientAcceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(strings.TrimSpace(name), "gzip") && strings.ReplaceAll(params, " ", "") != "q=0" {
			return true
		}
	}
	return false
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// gzipResponseWriter decides on the first MinSize bytes whether the body
// is worth compressing
type gzipResponseWriter struct {
	gin.ResponseWriter
	cm       *CompressionMiddleware
	buf      bytes.Buffer
	gz       *gzip.Writer
	decided  bool
	original int64
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	w.original += int64(len(data))
	if w.decided {
		return w.write(data)
	}

	w.buf.Write(data)
	if w.buf.Len() < w.cm.config.MinSize {
		return len(data), nil
	}
	if err := w.decide(); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) write(data []byte) (int, error) {
	if w.gz != nil {
		return w.gz.Write(data)
	}
	return w.ResponseWriter.Write(data)
}

// decide picks the encoding and flushes the buffered prefix
func (w *gzipResponseWriter) decide() error {
	w.decided = true

	header := w.Header()
	if header.Get("Content-Encoding") == "" && w.cm.shouldCompress(header.Get("Content-Type")) {
		header.Set("Content-Encoding", "gzip")
		header.Add("Vary", "Accept-Encoding")
		header.Del("Content-Length")

		w.gz = w.cm.pool.Get().(*gzip.Writer)
		w.gz.Reset(w.ResponseWriter)
	}

	_, err := w.write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// Flush decides early on whatever has been buffered so streaming handlers
// are not held back
func (w *gzipResponseWriter) Flush() {
	if !w.decided {
		_ = w.decide()
	}
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

// finish writes any short body as-is and closes the gzip stream
func (w *gzipResponseWriter) finish() {
	if !w.decided {
		if w.buf.Len() > 0 {
			_, _ = w.ResponseWriter.Write(w.buf.Bytes())
		}
		w.cm.stats.record(w.original, w.original, false)
		return
	}
	if w.gz == nil {
		w.cm.stats.record(w.original, w.original, false)
		return
	}

	_ = w.gz.Close()
	w.cm.pool.Put(w.gz)
	w.gz = nil
	w.cm.stats.record(w.original, int64(w.ResponseWriter.Size()), true)
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	totalRequests      atomic.Int64
	compressedRequests atomic.Int64
	totalBytes         atomic.Int64
	compressedBytes    atomic.Int64
	bytesIn            atomic.Int64
}

func (cs *CompressionStats) record(originalSize, writtenSize int64, compressed bool) {
	cs.totalRequests.Add(1)
	cs.totalBytes.Add(originalSize)
	if compressed {
		cs.compressedRequests.Add(1)
		cs.bytesIn.Add(originalSize)
		cs.compressedBytes.Add(writtenSize)
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	compressedIn := cs.bytesIn.Load()
	compressedOut := cs.compressedBytes.Load()

	ratio := float64(0)
	if compressedIn > 0 {
		ratio = float64(compressedOut) / float64(compressedIn)
	}

	return map[string]interface{}{
		"total_requests":      cs.totalRequests.Load(),
		"compressed_requests": cs.compressedRequests.Load(),
		"total_bytes":         cs.totalBytes.Load(),
		"compressed_bytes":    compressedOut,
		"compression_ratio":   ratio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
