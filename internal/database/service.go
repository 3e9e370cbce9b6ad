package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/resilience"
)

// PredictionService persists and retrieves prediction history
type PredictionService struct {
	repo         *Repository
	logger       *slog.Logger
	writeTimeout time.Duration
	retry        resilience.RetryConfig
}

// NewPredictionService creates a new prediction service
func NewPredictionService(repo *Repository, logger *slog.Logger) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionService{
		repo:         repo,
		logger:       logger,
		writeTimeout: 5 * time.Second,
		retry: resilience.RetryConfig{
			MaxAttempts: 4,
			Backoff:     resilience.Backoff{Initial: 25 * time.Millisecond, Max: 500 * time.Millisecond, Factor: 2, Jitter: true},
			Retryable:   isTransient,
		},
	}
}

// Record stores a completed prediction. The write is bounded by its own
// timeout so a slow disk cannot hold the caller's request open, and is
// retried while sqlite reports the database busy or locked.
func (s *PredictionService) Record(ctx context.Context, result *analysis.PredictionResult, vector features.Vector, report features.Report, clientIP string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	rec := NewPredictionRecord(result, vector, report, clientIP)
	retry := s.retry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.logger.Debug("Prediction write contended, retrying",
			"prediction_id", result.PredictionID, "attempt", attempt, "wait", wait, "error", err)
	}
	err := resilience.RetryWithConfig(ctx, retry, func(ctx context.Context) error {
		return s.repo.SavePrediction(ctx, rec)
	})
	if err != nil {
		s.logger.Error("Failed to persist prediction", "prediction_id", result.PredictionID, "error", err)
		return fmt.Errorf("record prediction %s: %w", result.PredictionID, err)
	}

	s.logger.Debug("Prediction persisted", "prediction_id", result.PredictionID, "verdict", result.Verdict)
	return nil
}

// isTransient reports lock contention that clears once the other writer
// commits
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// Get returns a stored prediction
func (s *PredictionService) Get(ctx context.Context, id string) (*PredictionRecord, error) {
	return s.repo.GetPrediction(ctx, id)
}

// Recent lists the newest predictions
func (s *PredictionService) Recent(ctx context.Context, opts ListOptions) ([]*PredictionRecord, error) {
	return s.repo.ListPredictions(ctx, opts)
}

// Summary reports stored prediction counts per verdict
func (s *PredictionService) Summary(ctx context.Context) (map[string]interface{}, error) {
	counts, err := s.repo.CountByVerdict(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	byVerdict := make(map[string]int, len(counts))
	for verdict, count := range counts {
		byVerdict[string(verdict)] = count
		total += count
	}

	return map[string]interface{}{
		"total":      total,
		"by_verdict": byVerdict,
	}, nil
}
