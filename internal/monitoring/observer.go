package monitoring

import (
	"time"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
)

// PredictionObserver feeds ensemble events into the logger and metrics.
type PredictionObserver struct {
	metrics *Metrics
	logger  *Logger
}

var _ analysis.Observer = (*PredictionObserver)(nil)

// NewPredictionObserver creates an observer for the orchestrator
func NewPredictionObserver(metrics *Metrics, logger *Logger) *PredictionObserver {
	return &PredictionObserver{metrics: metrics, logger: logger}
}

func (o *PredictionObserver) PredictionCompleted(result *analysis.PredictionResult, duration time.Duration) {
	o.metrics.RecordPrediction(string(result.Verdict), result.SuccessProbability, result.Degraded, duration)
	o.logger.PredictionLogger(result.PredictionID, string(result.Verdict),
		result.SuccessProbability, result.Confidence,
		result.ModelsUsed, result.ModelsTotal, result.Degraded, duration)
}

func (o *PredictionObserver) PredictionFailed(err error) {
	o.metrics.IncrementPredictionUnavailable()
	o.logger.Error("Prediction Unavailable", "error", err)
}

func (o *PredictionObserver) ModelExcluded(model, reason string, err error) {
	o.metrics.RecordModelExclusion(model, reason)
	o.logger.ModelExclusionLogger(model, reason, err)
}
