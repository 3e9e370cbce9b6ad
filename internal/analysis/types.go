package analysis

import (
	"time"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// Exclusion reasons reported per model.
const (
	ReasonCircuitOpen   = "circuit_open"
	ReasonAlignment     = "alignment"
	ReasonInvocation    = "invocation"
	ReasonInvalidOutput = "invalid_output"
)

// ModelOutcome is what one ensemble member contributed to a prediction
type ModelOutcome struct {
	Name            string        `json:"name"`
	Weight          float64       `json:"weight"`
	EffectiveWeight float64       `json:"effective_weight"`
	Probability     *float64      `json:"probability,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	Error           string        `json:"error,omitempty"`
	Latency         time.Duration `json:"latency_ns"`
}

// Excluded reports whether the model was left out of the weighted mean.
func (o ModelOutcome) Excluded() bool {
	return o.Probability == nil
}

// PredictionResult is the full answer for one company.
//
// Confidence is a heuristic: agreement between surviving models times the
// share of ensemble weight they carry. It is not a calibrated interval.
type PredictionResult struct {
	PredictionID       string               `json:"prediction_id"`
	SuccessProbability float64              `json:"success_probability"`
	Verdict            scoring.Verdict      `json:"verdict"`
	Strength           scoring.Strength     `json:"strength"`
	PillarScores       scoring.PillarScores `json:"pillar_scores"`
	OverallScore       float64              `json:"overall_score"`
	Stage              string               `json:"funding_stage"`
	ModelPredictions   map[string]float64   `json:"model_predictions"`
	ExcludedModels     map[string]string    `json:"excluded_models,omitempty"`
	Models             []ModelOutcome       `json:"models"`
	ModelsUsed         int                  `json:"models_used"`
	ModelsTotal        int                  `json:"models_total"`
	Confidence         float64              `json:"confidence"`
	Agreement          float64              `json:"agreement"`
	Coverage           float64              `json:"coverage"`
	Degraded           bool                 `json:"degraded"`
	NaNFeatures        []string             `json:"nan_features,omitempty"`
	ModelVersion       string               `json:"model_version"`
	CreatedAt          time.Time            `json:"created_at"`
}

// UnavailableError is returned when no ensemble member produced a usable
// probability. It unwraps to ErrPredictionUnavailable.
type UnavailableError struct {
	Excluded map[string]string
}

func (e *UnavailableError) Error() string {
	return ErrPredictionUnavailable.Error()
}

func (e *UnavailableError) Unwrap() error {
	return ErrPredictionUnavailable
}
