package cache

import (
	"bytes"
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultMaxEntries bounds the cache when no limit is configured
const DefaultMaxEntries = 10000

// Metrics is the subset of monitoring the cache reports to
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

type entry struct {
	key     string
	body    []byte
	expires time.Time
}

// Cache holds rendered prediction responses for a fixed TTL. When full, the
// oldest entry is evicted first.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front is oldest
	ttl        time.Duration
	maxEntries int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// Option customises a Cache
type Option func(*Cache)

// WithMaxEntries caps the number of stored responses
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// NewCache creates a cache whose entries live for ttl. Close stops the
// background sweep.
func NewCache(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	sweep := ttl
	if sweep <= 0 || sweep > 5*time.Minute {
		sweep = 5 * time.Minute
	}
	go c.sweepLoop(sweep)

	return c
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			if n := c.sweep(now); n > 0 {
				slog.Debug("Swept expired predictions", "count", n)
			}
		}
	}
}

// sweep drops expired entries. Entries share one TTL, so insertion order is
// expiry order and the walk stops at the first live entry.
func (c *Cache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if now.Before(el.Value.(*entry).expires) {
			break
		}
		c.remove(el)
		removed++
	}
	return removed
}

func (c *Cache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}

// Close stops the background sweep
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Key derives a cache key from its parts
func Key(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a live entry
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !time.Now().Before(e.expires) {
		c.remove(el)
		return nil, false
	}
	return e.body, true
}

// Set stores body under key, evicting the oldest entries past the limit
func (c *Cache) Set(key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
	c.entries[key] = c.order.PushBack(&entry{key: key, body: body, expires: time.Now().Add(c.ttl)})

	for c.order.Len() > c.maxEntries {
		c.remove(c.order.Front())
		c.evictions.Add(1)
	}
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the number of stored entries, expired ones included until swept
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Stats reports occupancy and hit counters for /metrics
func (c *Cache) Stats() map[string]interface{} {
	hits, misses := c.hits.Load(), c.misses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return map[string]interface{}{
		"entries":     c.Size(),
		"max_entries": c.maxEntries,
		"hits":        hits,
		"misses":      misses,
		"hit_rate":    hitRate,
		"evictions":   c.evictions.Load(),
		"ttl_seconds": c.ttl.Seconds(),
	}
}

// noStoreKey marks a response the handler does not want cached
const noStoreKey = "cache_no_store"

// SkipStore keeps the current response out of the cache. Degraded
// predictions use it so a recovered model is picked up on the next request.
func SkipStore(ctx *gin.Context) {
	ctx.Set(noStoreKey, true)
}

// Middleware serves repeated POST bodies on path from the cache. version is
// folded into the key so a manifest reload never serves stale predictions.
func (c *Cache) Middleware(metrics Metrics, path string, version func() string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || ctx.Request.URL.Path != path {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		key := Key(version(), string(body))
		if cached, ok := c.Get(key); ok {
			c.hits.Add(1)
			metrics.IncrementCacheHit()
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			ctx.Abort()
			return
		}

		c.misses.Add(1)
		metrics.IncrementCacheMiss()
		ctx.Header("X-Cache", "MISS")

		capture := &capturingWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = capture
		ctx.Next()

		// errors are rendered by an outer middleware after this returns
		if capture.Status() == http.StatusOK && len(ctx.Errors) == 0 && capture.body.Len() > 0 && !ctx.GetBool(noStoreKey) {
			c.Set(key, capture.body.Bytes())
		}
	}
}

// capturingWriter tees the response body so it can be stored
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
