package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/cache"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/database"
	apperrors "github.com/AnirudhBhanot/flashnew-sub008/internal/errors"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/features"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/resilience"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/scoring"
)

// PredictRequest is the wrapped request form. A bare feature object is
// accepted as well.
type PredictRequest struct {
	Features map[string]any `json:"features"`
	// Stage overrides the funding stage used to weight the overall score.
	Stage string `json:"stage,omitempty"`
}

// ConvertResponse shows how raw input was projected onto the catalog
type ConvertResponse struct {
	Features map[string]float64 `json:"features"`
	Stage    string             `json:"funding_stage"`
	Report   features.Report    `json:"report"`
	Supplied int                `json:"supplied"`
}

// ModelInfo describes one loaded ensemble member
type ModelInfo struct {
	Name         string                   `json:"name"`
	Kind         string                   `json:"kind"`
	FeatureCount int                      `json:"feature_count"`
	Weight       float64                  `json:"weight"`
	Version      string                   `json:"version,omitempty"`
	Breaker      *resilience.BreakerStats `json:"breaker,omitempty"`
	Health       *resilience.ModelHealth  `json:"health,omitempty"`
}

// ModelsResponse lists the active ensemble
type ModelsResponse struct {
	ManifestVersion string      `json:"manifest_version"`
	LoadedAt        time.Time   `json:"loaded_at"`
	Reloads         int64       `json:"reloads"`
	FailedReloads   int64       `json:"failed_reloads"`
	Models          []ModelInfo `json:"models"`
}

// decodeFeatures reads either a bare feature object or a PredictRequest.
// Numbers are kept as json.Number so large integers survive.
func decodeFeatures(c *gin.Context) (map[string]any, string, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, "", nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, "", err
	}
	if raw == nil {
		return nil, "", errors.New("body must be a JSON object")
	}

	wrapped, ok := raw["features"].(map[string]any)
	if !ok {
		return raw, "", nil
	}
	stage, _ := raw["stage"].(string)
	return wrapped, features.NormalizeCategory(stage), nil
}

func (s *Server) readFeatures(c *gin.Context) (map[string]any, string, bool) {
	raw, stage, err := decodeFeatures(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(c, apperrors.NewRequestRejectedError(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge))
			return nil, "", false
		}
		fail(c, apperrors.NewValidationError("invalid JSON body", err.Error()))
		return nil, "", false
	}
	if err := s.Security.ValidateFeatureInput(raw); err != nil {
		fail(c, apperrors.NewValidationError("invalid feature input", err.Error()))
		return nil, "", false
	}
	if stage != "" && !features.IsStage(stage) {
		fail(c, apperrors.NewValidationError("unknown funding stage", stage))
		return nil, "", false
	}
	return raw, stage, true
}

// handlePredict scores one company with the full ensemble
//
//	@Summary		Predict startup success
//	@Description	Accepts a raw feature object or {"features": {...}, "stage": "..."}. Missing fields take catalog defaults.
//	@Tags			prediction
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PredictRequest	true	"Company features"
//	@Success		200		{object}	analysis.PredictionResult
//	@Failure		400		{object}	apperrors.AppError
//	@Failure		429		{object}	apperrors.AppError
//	@Failure		503		{object}	apperrors.AppError
//	@Router			/api/v1/predict [post]
func (s *Server) handlePredict(c *gin.Context) {
	raw, stage, ok := s.readFeatures(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	vector, report := features.Convert(raw)

	result, err := s.Orchestrator.Predict(ctx, vector, stage)
	if err != nil {
		fail(c, predictionError(err))
		return
	}

	if s.Predictions != nil {
		// persistence failures are logged by the service and never fail the request
		_ = s.Predictions.Record(ctx, result, vector, report, c.ClientIP())
	}

	if result.Degraded {
		cache.SkipStore(c)
	}
	c.JSON(http.StatusOK, result)
}

func predictionError(err error) *apperrors.AppError {
	var unavailable *analysis.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		return apperrors.NewPredictionUnavailableError(unavailable.Excluded, err)
	case errors.Is(err, analysis.ErrPredictionUnavailable):
		return apperrors.NewPredictionUnavailableError(nil, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("prediction did not finish before the request deadline", err)
	}
	return apperrors.NewInternalError("prediction failed", err)
}

// handleConvert returns the canonical vector for a raw payload
//
//	@Summary	Convert raw features
//	@Tags		features
//	@Accept		json
//	@Produce	json
//	@Param		request	body		PredictRequest	true	"Company features"
//	@Success	200		{object}	ConvertResponse
//	@Failure	400		{object}	apperrors.AppError
//	@Router		/api/v1/convert [post]
func (s *Server) handleConvert(c *gin.Context) {
	raw, _, ok := s.readFeatures(c)
	if !ok {
		return
	}

	vector, report := features.Convert(raw)
	c.JSON(http.StatusOK, ConvertResponse{
		Features: vector.Map(),
		Stage:    vector.Stage(),
		Report:   report,
		Supplied: report.Supplied(),
	})
}

// handleFeatures lists the canonical catalog
//
//	@Summary	Feature catalog
//	@Tags		features
//	@Produce	json
//	@Success	200	{array}	features.Feature
//	@Router		/api/v1/features [get]
func (s *Server) handleFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":    features.Count,
		"features": features.Catalog(),
	})
}

// handleModels describes the active ensemble and the state of each breaker
//
//	@Summary	Loaded models
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	ModelsResponse
//	@Failure	503	{object}	apperrors.AppError
//	@Router		/api/v1/models [get]
func (s *Server) handleModels(c *gin.Context) {
	registry := s.Orchestrator.Registry()
	snap := registry.Current()
	if snap == nil {
		fail(c, apperrors.NewPredictionUnavailableError(nil, analysis.ErrPredictionUnavailable))
		return
	}

	breakers := s.Orchestrator.BreakerStats()
	health := s.Orchestrator.ModelHealth()
	reloads, failed := registry.ReloadStats()

	resp := ModelsResponse{
		ManifestVersion: snap.Manifest.Version,
		LoadedAt:        snap.LoadedAt.UTC(),
		Reloads:         reloads,
		FailedReloads:   failed,
		Models:          make([]ModelInfo, 0, len(snap.Models)),
	}
	for _, m := range snap.Models {
		info := ModelInfo{
			Name:         m.Name,
			Kind:         string(m.Kind),
			FeatureCount: m.FeatureCount,
			Weight:       m.Weight,
			Version:      m.Version,
		}
		if b, ok := breakers[m.Name]; ok {
			info.Breaker = &b
		}
		if h, ok := health[m.Name]; ok {
			info.Health = &h
		}
		resp.Models = append(resp.Models, info)
	}

	c.JSON(http.StatusOK, resp)
}

// handleStageWeights returns the pillar weight profile per funding stage
//
//	@Summary	Stage weight profiles
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	map[string]scoring.Weights
//	@Router		/api/v1/config/stage-weights [get]
func (s *Server) handleStageWeights(c *gin.Context) {
	engine := scoring.Default()
	if snap := s.Orchestrator.Registry().Current(); snap != nil && snap.Scoring != nil {
		engine = snap.Scoring
	}

	c.JSON(http.StatusOK, gin.H{
		"stage_weights": engine.Weights(),
		"verdict_bands": engine.Bands(),
	})
}

// handleGetPrediction loads one persisted prediction
//
//	@Summary	Get prediction
//	@Tags		prediction
//	@Produce	json
//	@Param		id	path		string	true	"Prediction ID"
//	@Success	200	{object}	database.PredictionRecord
//	@Failure	404	{object}	apperrors.AppError
//	@Router		/api/v1/predictions/{id} [get]
func (s *Server) handleGetPrediction(c *gin.Context) {
	id := c.Param("id")

	rec, err := s.Predictions.Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrPredictionNotFound) {
		fail(c, apperrors.NewNotFoundError("prediction", id))
		return
	}
	if err != nil {
		fail(c, apperrors.NewInternalError("failed to load prediction", err))
		return
	}

	c.JSON(http.StatusOK, rec)
}

// handleListPredictions lists recent predictions
//
//	@Summary	Recent predictions
//	@Tags		prediction
//	@Produce	json
//	@Param		limit	query		int		false	"Maximum rows (1-200)"
//	@Param		verdict	query		string	false	"Filter by verdict"
//	@Success	200		{array}		database.PredictionRecord
//	@Failure	400		{object}	apperrors.AppError
//	@Router		/api/v1/predictions [get]
func (s *Server) handleListPredictions(c *gin.Context) {
	opts := database.ListOptions{Verdict: scoring.Verdict(c.Query("verdict"))}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			fail(c, apperrors.NewValidationError("limit must be a positive integer", limit))
			return
		}
		opts.Limit = n
	}

	records, err := s.Predictions.Recent(c.Request.Context(), opts)
	if err != nil {
		fail(c, apperrors.NewInternalError("failed to list predictions", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(records),
		"predictions": records,
	})
}

// handlePredictionSummary counts stored predictions per verdict
//
//	@Summary	Prediction summary
//	@Tags		prediction
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/api/v1/predictions/summary [get]
func (s *Server) handlePredictionSummary(c *gin.Context) {
	summary, err := s.Predictions.Summary(c.Request.Context())
	if err != nil {
		fail(c, apperrors.NewInternalError("failed to summarise predictions", err))
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleHealth reports service and per-model health
//
//	@Summary	Health check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/health [get]
func (s *Server) handleHealth(c *gin.Context) {
	level := s.Orchestrator.HealthLevel()
	snap := s.Orchestrator.Registry().Current()

	resp := gin.H{
		"status":    "ok",
		"level":     level,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"models":    s.Orchestrator.ModelHealth(),
		"breakers":  s.Orchestrator.BreakerStats(),
	}
	if snap != nil {
		resp["manifest_version"] = snap.Manifest.Version
		resp["models_loaded"] = len(snap.Models)
	}

	if snap == nil || len(snap.Models) == 0 || level == resilience.LevelCritical {
		resp["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleMetrics exposes in-process counters
//
//	@Summary	Metrics
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/metrics [get]
func (s *Server) handleMetrics(c *gin.Context) {
	stats := s.Metrics.GetStats()
	stats["compression"] = s.Compression.GetStats()
	if s.Cache != nil {
		stats["cache"] = s.Cache.Stats()
	}
	if s.DB != nil {
		stats["database_pool"] = s.DB.GetPoolStats()
	}
	c.JSON(http.StatusOK, stats)
}
