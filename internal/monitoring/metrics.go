package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// latencyWindow keeps the most recent samples in a ring. Every summary it
// reports covers only the retained samples.
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	count   atomic.Int64 // all-time sample count
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{samples: make([]time.Duration, size)}
}

func (w *latencyWindow) record(d time.Duration) {
	w.count.Add(1)

	w.mu.Lock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
	w.mu.Unlock()
}

func (w *latencyWindow) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.full {
		return len(w.samples)
	}
	return w.next
}

// sorted returns a sorted copy of the retained samples
func (w *latencyWindow) sorted() []time.Duration {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	out := make([]time.Duration, n)
	copy(out, w.samples[:n])
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// nearestRank picks percentile p (0-100) from sorted samples
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(float64(n-1) * p / 100)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func (w *latencyWindow) percentile(p float64) time.Duration {
	return nearestRank(w.sorted(), p)
}

func (w *latencyWindow) snapshot() map[string]interface{} {
	sorted := w.sorted()

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	avg := 0.0
	if len(sorted) > 0 {
		avg = float64(sum) / float64(len(sorted)) / 1e6
	}

	return map[string]interface{}{
		"samples": len(sorted),
		"avg_ms":  avg,
		"p50_ms":  float64(nearestRank(sorted, 50)) / 1e6,
		"p95_ms":  float64(nearestRank(sorted, 95)) / 1e6,
		"p99_ms":  float64(nearestRank(sorted, 99)) / 1e6,
	}
}

// Metrics aggregates in-process counters for /metrics. All methods are safe
// for concurrent use.
type Metrics struct {
	started time.Time

	requests    atomic.Int64
	errors      atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	http        *latencyWindow

	statusMu sync.Mutex
	byStatus map[int]int64

	predictions     atomic.Int64
	degraded        atomic.Int64
	unavailable     atomic.Int64
	reloads         atomic.Int64
	reloadFailures  atomic.Int64
	ensemble        *latencyWindow
	predictionMu    sync.Mutex
	probabilitySum  float64
	verdicts        map[string]int64
	modelExclusions map[string]map[string]int64 // model -> reason -> count

	ipBlocks       atomic.Int64
	redisErrors    atomic.Int64
	fallbackChecks atomic.Int64
	rateMu         sync.Mutex
	endpointBlocks map[string]int64
}

// NewMetrics creates an empty metrics set
func NewMetrics() *Metrics {
	return &Metrics{
		started:         time.Now(),
		http:            newLatencyWindow(maxResponseSamples),
		byStatus:        make(map[int]int64),
		ensemble:        newLatencyWindow(maxResponseSamples),
		verdicts:        make(map[string]int64),
		modelExclusions: make(map[string]map[string]int64),
		endpointBlocks:  make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest()   { m.requests.Add(1) }
func (m *Metrics) IncrementError()     { m.errors.Add(1) }
func (m *Metrics) IncrementCacheHit()  { m.cacheHits.Add(1) }
func (m *Metrics) IncrementCacheMiss() { m.cacheMisses.Add(1) }

// Requests returns the number of requests seen
func (m *Metrics) Requests() int64 { return m.requests.Load() }

// Errors returns the number of responses with status >= 400
func (m *Metrics) Errors() int64 { return m.errors.Load() }

// RecordResponseTime adds one HTTP latency sample
func (m *Metrics) RecordResponseTime(d time.Duration) {
	m.http.record(d)
}

// RecordRequestByStatus counts a response status
func (m *Metrics) RecordRequestByStatus(status int) {
	m.statusMu.Lock()
	m.byStatus[status]++
	m.statusMu.Unlock()
}

// GetPercentileResponseTime returns the HTTP latency at percentile p (0-100)
func (m *Metrics) GetPercentileResponseTime(p float64) time.Duration {
	return m.http.percentile(p)
}

// GetStatusCodeDistribution returns a copy of the per-status counts
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	out := make(map[int]int64, len(m.byStatus))
	for code, n := range m.byStatus {
		out[code] = n
	}
	return out
}

// RecordPrediction counts a completed ensemble prediction
func (m *Metrics) RecordPrediction(verdict string, probability float64, degraded bool, d time.Duration) {
	m.predictions.Add(1)
	if degraded {
		m.degraded.Add(1)
	}
	m.ensemble.record(d)

	m.predictionMu.Lock()
	m.verdicts[verdict]++
	m.probabilitySum += probability
	m.predictionMu.Unlock()
}

// IncrementPredictionUnavailable counts a request where every model failed
func (m *Metrics) IncrementPredictionUnavailable() {
	m.unavailable.Add(1)
}

// RecordModelExclusion counts one model exclusion by reason
func (m *Metrics) RecordModelExclusion(model, reason string) {
	m.predictionMu.Lock()
	defer m.predictionMu.Unlock()

	reasons, ok := m.modelExclusions[model]
	if !ok {
		reasons = make(map[string]int64)
		m.modelExclusions[model] = reasons
	}
	reasons[reason]++
}

// RecordManifestReload counts a hot reload attempt
func (m *Metrics) RecordManifestReload(err error) {
	if err != nil {
		m.reloadFailures.Add(1)
		return
	}
	m.reloads.Add(1)
}

// GetPredictionStats returns ensemble statistics
func (m *Metrics) GetPredictionStats() map[string]interface{} {
	m.predictionMu.Lock()
	verdicts := make(map[string]int64, len(m.verdicts))
	for v, n := range m.verdicts {
		verdicts[v] = n
	}
	exclusions := make(map[string]map[string]int64, len(m.modelExclusions))
	for model, reasons := range m.modelExclusions {
		exclusions[model] = make(map[string]int64, len(reasons))
		for reason, n := range reasons {
			exclusions[model][reason] = n
		}
	}
	sum := m.probabilitySum
	m.predictionMu.Unlock()

	total := m.predictions.Load()
	mean := 0.0
	if total > 0 {
		mean = sum / float64(total)
	}

	return map[string]interface{}{
		"total":                    total,
		"degraded":                 m.degraded.Load(),
		"unavailable":              m.unavailable.Load(),
		"mean_probability":         mean,
		"verdicts":                 verdicts,
		"model_exclusions":         exclusions,
		"latency":                  m.ensemble.snapshot(),
		"manifest_reloads":         m.reloads.Load(),
		"manifest_reload_failures": m.reloadFailures.Load(),
	}
}

// GetStats returns every metric for /metrics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := m.requests.Load()
	errs := m.errors.Load()
	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errs) / float64(requests) * 100
	}
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.started).Seconds(),
		"start_time":               m.started.UTC().Format(time.RFC3339),
		"total_requests":           requests,
		"error_count":              errs,
		"error_rate_percent":       errorRate,
		"cache_hits":               hits,
		"cache_misses":             misses,
		"cache_hit_rate_percent":   hitRate,
		"response_time":            m.http.snapshot(),
		"status_code_distribution": m.GetStatusCodeDistribution(),

		"predictions": m.GetPredictionStats(),
		"rate_limit":  m.GetRateLimitStats(),

		"go_goroutines":       runtime.NumGoroutine(),
		"go_gc_count":         mem.NumGC,
		"go_heap_alloc_bytes": mem.HeapAlloc,
	}
}

func (m *Metrics) IncrementRateLimitIPBlock()    { m.ipBlocks.Add(1) }
func (m *Metrics) IncrementRateLimitRedisError() { m.redisErrors.Add(1) }
func (m *Metrics) IncrementRateLimitFallback()   { m.fallbackChecks.Add(1) }

// IncrementRateLimitEndpoint counts a block on a per-endpoint budget
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.rateMu.Lock()
	m.endpointBlocks[endpoint]++
	m.rateMu.Unlock()
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.rateMu.Lock()
	blocks := make(map[string]int64, len(m.endpointBlocks))
	for k, v := range m.endpointBlocks {
		blocks[k] = v
	}
	m.rateMu.Unlock()

	return map[string]interface{}{
		"ip_blocks":       m.ipBlocks.Load(),
		"redis_errors":    m.redisErrors.Load(),
		"fallback_count":  m.fallbackChecks.Load(),
		"endpoint_blocks": blocks,
	}
}
