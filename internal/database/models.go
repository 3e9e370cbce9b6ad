package database

import (
	"time"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// PredictionRecord is one persisted prediction with the inputs that produced it
type PredictionRecord struct {
	ID                 string               `json:"prediction_id" db:"id"`
	ModelVersion       string               `json:"model_version" db:"model_version"`
	Stage              string               `json:"funding_stage" db:"funding_stage"`
	SuccessProbability float64              `json:"success_probability" db:"success_probability"`
	Verdict            scoring.Verdict      `json:"verdict" db:"verdict"`
	Strength           scoring.Strength     `json:"strength" db:"strength"`
	Confidence         float64              `json:"confidence" db:"confidence"`
	OverallScore       float64              `json:"overall_score" db:"overall_score"`
	Degraded           bool                 `json:"degraded" db:"degraded"`
	ModelsUsed         int                  `json:"models_used" db:"models_used"`
	ModelsTotal        int                  `json:"models_total" db:"models_total"`
	PillarScores       scoring.PillarScores `json:"pillar_scores" db:"pillar_scores"`
	ModelPredictions   map[string]float64   `json:"model_predictions" db:"model_predictions"`
	ExcludedModels     map[string]string    `json:"excluded_models,omitempty" db:"excluded_models"`
	Features           map[string]float64   `json:"features" db:"features"`
	Conversion         *features.Report     `json:"conversion,omitempty" db:"conversion_report"`
	ClientIP           string               `json:"-" db:"client_ip"`
	CreatedAt          time.Time            `json:"created_at" db:"created_at"`
}

// ListOptions filters a listing of recent predictions
type ListOptions struct {
	Limit   int
	Verdict scoring.Verdict
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	}
	return o.Limit
}

// NewPredictionRecord captures result together with the converted inputs
func NewPredictionRecord(result *analysis.PredictionResult, vector features.Vector, report features.Report, clientIP string) *PredictionRecord {
	rep := report
	return &PredictionRecord{
		ID:                 result.PredictionID,
		ModelVersion:       result.ModelVersion,
		Stage:              result.Stage,
		SuccessProbability: result.SuccessProbability,
		Verdict:            result.Verdict,
		Strength:           result.Strength,
		Confidence:         result.Confidence,
		OverallScore:       result.OverallScore,
		Degraded:           result.Degraded,
		ModelsUsed:         result.ModelsUsed,
		ModelsTotal:        result.ModelsTotal,
		PillarScores:       result.PillarScores,
		ModelPredictions:   result.ModelPredictions,
		ExcludedModels:     result.ExcludedModels,
		Features:           vector.Map(),
		Conversion:         &rep,
		ClientIP:           clientIP,
		CreatedAt:          result.CreatedAt,
	}
}
