package models

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// Snapshot is an immutable loaded ensemble plus its scoring tables.
type Snapshot struct {
	Manifest *Manifest
	Models   []*Model
	Scoring  *scoring.Engine
	LoadedAt time.Time
}

// LoadSnapshot opens every artifact named by m. Any failure closes what was
// already opened and aborts the load.
func LoadSnapshot(m *Manifest, opts ONNXOptions) (*Snapshot, error) {
	engine, err := m.Scoring.Build()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Manifest: m, Scoring: engine, LoadedAt: time.Now()}
	for _, d := range m.Models {
		model, err := Open(d, m.ArtifactPath(d), opts)
		if err != nil {
			_ = snap.Close()
			return nil, err
		}
		snap.Models = append(snap.Models, model)
	}
	return snap, nil
}

// NewSnapshot assembles a snapshot from already-open models. Weights must
// sum to one; it is mainly used to wire in-process classifiers.
func NewSnapshot(engine *scoring.Engine, models ...*Model) (*Snapshot, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("snapshot needs at least one model")
	}
	m := &Manifest{Version: "inline"}
	total := 0.0
	for _, model := range models {
		if err := model.validate(); err != nil {
			return nil, err
		}
		resolved, err := model.ResolveFeatures()
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", model.Name, err)
		}
		model.Features = resolved
		total += model.Weight
		m.Models = append(m.Models, model.Descriptor)
	}
	if total < 1-WeightTolerance || total > 1+WeightTolerance {
		return nil, fmt.Errorf("model weights sum to %.6f, want 1.0", total)
	}
	if engine == nil {
		engine = scoring.Default()
	}
	return &Snapshot{Manifest: m, Models: models, Scoring: engine, LoadedAt: time.Now()}, nil
}

// Close releases every classifier in the snapshot.
func (s *Snapshot) Close() error {
	var errs []error
	for _, model := range s.Models {
		if err := model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("model %s: %w", model.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Registry owns the active snapshot. Readers hold the read lock for a whole
// prediction; a reload takes the write lock only to swap the pointer.
type Registry struct {
	mu      sync.RWMutex
	current *Snapshot

	path    string
	opts    ONNXOptions
	logger  *slog.Logger
	reloads atomic.Int64
	failed  atomic.Int64
}

// NewRegistry loads the manifest at path. Configuration errors are returned
// so the caller can fail fast at startup.
func NewRegistry(path string, opts ONNXOptions, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	snap, err := LoadSnapshot(m, opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Model registry loaded",
		"manifest", path,
		"version", m.Version,
		"models", len(snap.Models),
	)
	return &Registry{current: snap, path: path, opts: opts, logger: logger}, nil
}

// NewStaticRegistry wraps a prebuilt snapshot. Reload is unavailable.
func NewStaticRegistry(snap *Snapshot, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{current: snap, logger: logger}
}

// Acquire returns the active snapshot and holds the read barrier until release is called.
func (r *Registry) Acquire() (snap *Snapshot, release func()) {
	r.mu.RLock()
	return r.current, r.mu.RUnlock
}

// Current returns the active snapshot for read-only inspection.
func (r *Registry) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Path is the manifest the registry was loaded from.
func (r *Registry) Path() string { return r.path }

// Reload loads the manifest again and swaps it in. On failure the previous
// snapshot stays active.
func (r *Registry) Reload() error {
	if r.path == "" {
		return fmt.Errorf("registry has no manifest to reload")
	}

	m, err := LoadManifest(r.path)
	if err == nil {
		var next *Snapshot
		next, err = LoadSnapshot(m, r.opts)
		if err == nil {
			r.mu.Lock()
			prev := r.current
			r.current = next
			r.mu.Unlock()

			if cerr := prev.Close(); cerr != nil {
				r.logger.Warn("Failed to close previous model snapshot", "error", cerr)
			}
			r.reloads.Add(1)
			r.logger.Info("Model registry reloaded",
				"manifest", r.path,
				"version", m.Version,
				"models", len(next.Models),
			)
			return nil
		}
	}

	r.failed.Add(1)
	r.logger.Error("Model registry reload rejected, keeping previous snapshot",
		"manifest", r.path,
		"error", err,
	)
	return err
}

// ReloadStats returns the number of successful and rejected reloads.
func (r *Registry) ReloadStats() (reloads, failed int64) {
	return r.reloads.Load(), r.failed.Load()
}

// Close releases the active snapshot.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
