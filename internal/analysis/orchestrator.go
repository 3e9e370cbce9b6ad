package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/models"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/resilience"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// ErrPredictionUnavailable is returned when every model in the ensemble was
// excluded. No fallback probability is ever substituted.
var ErrPredictionUnavailable = errors.New("prediction unavailable: no model produced a usable probability")

// singleModelAgreement is the agreement assigned when only one model survives.
const singleModelAgreement = 0.5

// Observer receives prediction events, typically for logs and metrics.
type Observer interface {
	PredictionCompleted(result *PredictionResult, duration time.Duration)
	PredictionFailed(err error)
	ModelExcluded(model, reason string, err error)
}

// Orchestrator runs the ensemble against the registry's active snapshot.
type Orchestrator struct {
	registry    *models.Registry
	breakers    *resilience.CircuitBreakerRegistry
	health      *resilience.DegradationManager
	concurrency int
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConcurrency bounds how many models are invoked at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithBreakerConfig sets the per-model circuit breaker policy.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(o *Orchestrator) {
		o.breakers = resilience.NewCircuitBreakerRegistry(cfg)
	}
}

// WithObserver routes prediction events to obs.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over registry
func NewOrchestrator(registry *models.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		concurrency: 4,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breakers == nil {
		o.breakers = resilience.NewCircuitBreakerRegistry(resilience.CircuitBreakerConfig{})
	}
	if o.observer == nil {
		o.observer = logObserver{logger: o.logger}
	}
	o.health = resilience.NewDegradationManager(resilience.DefaultDegradationConfig(), o.logger)
	return o
}

// Evaluate converts a raw payload and predicts on it.
func (o *Orchestrator) Evaluate(ctx context.Context, raw map[string]any) (*PredictionResult, features.Report, error) {
	v, report := features.Convert(raw)
	result, err := o.Predict(ctx, v, "")
	return result, report, err
}

// Predict scores v with every model in the active snapshot. An empty stage
// uses the funding stage encoded in v.
func (o *Orchestrator) Predict(ctx context.Context, v features.Vector, stage string) (*PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := o.now()

	snap, release := o.registry.Acquire()
	defer release()
	if snap == nil || len(snap.Models) == 0 {
		return nil, fmt.Errorf("%w: no models loaded", ErrPredictionUnavailable)
	}

	if stage == "" {
		stage = v.Stage()
	}
	pillars := snap.Scoring.Score(v, stage)

	outcomes := make([]ModelOutcome, len(snap.Models))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, model := range snap.Models {
		g.Go(func() error {
			// cancellation is honoured between invocations, never mid-call
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = o.invoke(ctx, model, v, pillars.Scores)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := combine(outcomes)
	if err != nil {
		o.observer.PredictionFailed(err)
		return nil, err
	}

	result.PredictionID = uuid.NewString()
	result.Verdict, result.Strength = snap.Scoring.Classify(result.SuccessProbability)
	result.PillarScores = pillars.Scores
	result.OverallScore = scoring.Round(pillars.Overall)
	result.Stage = pillars.Stage
	result.NaNFeatures = pillars.NaNFeatures
	result.ModelVersion = snap.Manifest.Version
	result.CreatedAt = o.now().UTC()

	o.observer.PredictionCompleted(result, o.now().Sub(start))
	return result, nil
}

func (o *Orchestrator) invoke(ctx context.Context, model *models.Model, v features.Vector, pillars scoring.PillarScores) (outcome ModelOutcome) {
	outcome = ModelOutcome{Name: model.Name, Weight: model.Weight}
	started := o.now()
	defer func() { outcome.Latency = o.now().Sub(started) }()

	row, err := Align(v, pillars, model.Descriptor)
	if err != nil {
		o.exclude(&outcome, ReasonAlignment, err)
		return outcome
	}

	var p float64
	err = o.breakers.Get(model.Name).Call(func() error {
		var err error
		p, err = model.PredictProbability(ctx, row)
		if err != nil {
			return err
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return &invalidOutputError{value: p}
		}
		return nil
	})

	var (
		cbErr  *resilience.CircuitBreakerError
		outErr *invalidOutputError
	)
	switch {
	case errors.As(err, &cbErr):
		o.exclude(&outcome, ReasonCircuitOpen, err)
	case errors.As(err, &outErr):
		o.exclude(&outcome, ReasonInvalidOutput, err)
	case err != nil:
		o.exclude(&outcome, ReasonInvocation, err)
	default:
		o.health.RecordSuccess(model.Name)
		outcome.Probability = &p
	}
	return outcome
}

func (o *Orchestrator) exclude(outcome *ModelOutcome, reason string, err error) {
	outcome.Reason = reason
	outcome.Error = err.Error()
	if reason != ReasonCircuitOpen {
		o.health.RecordFailure(outcome.Name, err)
	}
	o.observer.ModelExcluded(outcome.Name, reason, err)
}

// combine renormalises the surviving weights and derives the confidence
// heuristic. Weights in a snapshot sum to one, so the surviving weight is
// also the coverage.
func combine(outcomes []ModelOutcome) (*PredictionResult, error) {
	result := &PredictionResult{
		ModelPredictions: make(map[string]float64),
		ModelsTotal:      len(outcomes),
	}

	for _, out := range outcomes {
		if out.Excluded() {
			if result.ExcludedModels == nil {
				result.ExcludedModels = make(map[string]string)
			}
			result.ExcludedModels[out.Name] = out.Reason + ": " + out.Error
			continue
		}
		result.Coverage += out.Weight
		result.ModelsUsed++
	}
	if result.ModelsUsed == 0 {
		return nil, &UnavailableError{Excluded: result.ExcludedModels}
	}

	mean := 0.0
	for i := range outcomes {
		out := &outcomes[i]
		if out.Excluded() {
			continue
		}
		out.EffectiveWeight = out.Weight / result.Coverage
		mean += out.EffectiveWeight * *out.Probability
		result.ModelPredictions[out.Name] = scoring.Round(*out.Probability)
	}

	agreement := singleModelAgreement
	if result.ModelsUsed > 1 {
		variance := 0.0
		for _, out := range outcomes {
			if out.Excluded() {
				continue
			}
			d := *out.Probability - mean
			variance += out.EffectiveWeight * d * d
		}
		agreement = 1 - math.Min(1, 2*math.Sqrt(variance))
	}

	result.SuccessProbability = scoring.Round(math.Min(1, math.Max(0, mean)))
	result.Agreement = scoring.Round(agreement)
	result.Coverage = scoring.Round(result.Coverage)
	result.Confidence = scoring.Round(agreement * result.Coverage)
	result.Degraded = result.ModelsUsed < result.ModelsTotal
	result.Models = outcomes
	return result, nil
}

// ModelsReloaded clears breaker and health state after a new snapshot is
// installed, so replaced artifacts start from a clean record.
func (o *Orchestrator) ModelsReloaded() {
	for _, name := range o.breakers.Names() {
		o.health.ResetModel(name)
	}
	o.breakers.ResetAll()
	o.logger.Info("Model failure state reset after reload")
}

// BreakerStats reports the circuit state of every model invoked so far.
func (o *Orchestrator) BreakerStats() map[string]resilience.BreakerStats {
	return o.breakers.GetStats()
}

// ModelHealth reports recent failure rates per model.
func (o *Orchestrator) ModelHealth() map[string]resilience.ModelHealth {
	return o.health.GetAllModelHealth()
}

// HealthLevel is the worst degradation level across models.
func (o *Orchestrator) HealthLevel() resilience.DegradationLevel {
	return o.health.OverallLevel()
}

// Registry exposes the model registry.
func (o *Orchestrator) Registry() *models.Registry {
	return o.registry
}

type invalidOutputError struct {
	value float64
}

func (e *invalidOutputError) Error() string {
	return fmt.Sprintf("probability %v outside [0,1]", e.value)
}

type logObserver struct {
	logger *slog.Logger
}

func (l logObserver) PredictionCompleted(result *PredictionResult, duration time.Duration) {
	l.logger.Info("Prediction completed",
		"prediction_id", result.PredictionID,
		"probability", result.SuccessProbability,
		"verdict", result.Verdict,
		"models_used", result.ModelsUsed,
		"degraded", result.Degraded,
		"duration_ms", duration.Milliseconds(),
	)
}

func (l logObserver) PredictionFailed(err error) {
	l.logger.Error("Prediction unavailable", "error", err)
}

func (l logObserver) ModelExcluded(model, reason string, err error) {
	l.logger.Warn("Model excluded from ensemble",
		"model", model,
		"reason", reason,
		"error", err,
	)
}
