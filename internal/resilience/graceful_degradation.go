package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalText renders the level by name in JSON payloads
func (l DegradationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// DegradationConfig holds configuration for graceful degradation
type DegradationConfig struct {
	DegradedThreshold float64 `json:"degraded_threshold"` // windowed failure rate (0.0-1.0)
	CriticalThreshold float64 `json:"critical_threshold"` // windowed failure rate (0.0-1.0)
	Window            int     `json:"window"`             // number of recent invocations considered
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		DegradedThreshold: 0.1,
		CriticalThreshold: 0.5,
		Window:            100,
	}
}

// ModelHealth is a snapshot of one model's recent behaviour
type ModelHealth struct {
	Model         string           `json:"model"`
	Level         DegradationLevel `json:"level"`
	FailureRate   float64          `json:"failure_rate"`
	Invocations   int64            `json:"invocations"`
	Failures      int64            `json:"failures"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime *time.Time       `json:"last_error_time,omitempty"`
	DegradedSince *time.Time       `json:"degraded_since,omitempty"`
}

type modelRecord struct {
	health ModelHealth
	recent []bool // ring of outcomes, true on failure
	next   int
	filled int
	failed int
}

// DegradationManager tracks per-model failure rates across predictions.
type DegradationManager struct {
	config DegradationConfig
	models map[string]*modelRecord
	mutex  sync.RWMutex
	logger *slog.Logger
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig, logger *slog.Logger) *DegradationManager {
	if config.Window <= 0 {
		config.Window = DefaultDegradationConfig().Window
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DegradationManager{
		config: config,
		models: make(map[string]*modelRecord),
		logger: logger,
	}
}

func (dm *DegradationManager) record(model string) *modelRecord {
	rec, exists := dm.models[model]
	if !exists {
		rec = &modelRecord{
			health: ModelHealth{Model: model, Level: LevelNormal},
			recent: make([]bool, dm.config.Window),
		}
		dm.models[model] = rec
	}
	return rec
}

// RecordSuccess records a usable prediction from model
func (dm *DegradationManager) RecordSuccess(model string) {
	dm.observe(model, nil)
}

// RecordFailure records an excluded invocation of model
func (dm *DegradationManager) RecordFailure(model string, err error) {
	dm.observe(model, err)
}

func (dm *DegradationManager) observe(model string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	rec := dm.record(model)
	failed := err != nil

	if rec.filled == len(rec.recent) {
		if rec.recent[rec.next] {
			rec.failed--
		}
	} else {
		rec.filled++
	}
	rec.recent[rec.next] = failed
	rec.next = (rec.next + 1) % len(rec.recent)

	rec.health.Invocations++
	if failed {
		rec.failed++
		rec.health.Failures++
		now := time.Now()
		rec.health.LastError = err.Error()
		rec.health.LastErrorTime = &now
	}
	rec.health.FailureRate = float64(rec.failed) / float64(rec.filled)

	dm.updateLevel(rec)
}

func (dm *DegradationManager) updateLevel(rec *modelRecord) {
	oldLevel := rec.health.Level

	var newLevel DegradationLevel
	switch {
	case rec.health.FailureRate >= dm.config.CriticalThreshold:
		newLevel = LevelCritical
	case rec.health.FailureRate >= dm.config.DegradedThreshold:
		newLevel = LevelDegraded
	default:
		newLevel = LevelNormal
	}

	if newLevel == oldLevel {
		return
	}
	if newLevel == LevelNormal {
		rec.health.DegradedSince = nil
	} else if oldLevel == LevelNormal {
		now := time.Now()
		rec.health.DegradedSince = &now
	}
	rec.health.Level = newLevel

	dm.logger.Warn("Model degradation level changed",
		"model", rec.health.Model,
		"old_level", oldLevel.String(),
		"new_level", newLevel.String(),
		"failure_rate", rec.health.FailureRate,
		"invocations", rec.health.Invocations,
		"failures", rec.health.Failures)
}

// GetModelHealth returns the health of one model
func (dm *DegradationManager) GetModelHealth(model string) (ModelHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	rec, exists := dm.models[model]
	if !exists {
		return ModelHealth{}, false
	}
	return rec.health, true
}

// GetAllModelHealth returns health for every model seen so far
func (dm *DegradationManager) GetAllModelHealth() map[string]ModelHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	result := make(map[string]ModelHealth, len(dm.models))
	for name, rec := range dm.models {
		result[name] = rec.health
	}
	return result
}

// OverallLevel is the worst level across all models
func (dm *DegradationManager) OverallLevel() DegradationLevel {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	level := LevelNormal
	for _, rec := range dm.models {
		if rec.health.Level > level {
			level = rec.health.Level
		}
	}
	return level
}

// ResetModel clears a model's history
func (dm *DegradationManager) ResetModel(model string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if _, exists := dm.models[model]; exists {
		delete(dm.models, model)
		dm.logger.Info("Model health reset", "model", model)
	}
}
