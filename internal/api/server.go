// Package api exposes the prediction core over HTTP.
//
//	@title			CAMP Startup Evaluation API
//	@version		1.0
//	@description	Ensemble success prediction for startups scored on Capital, Advantage, Market and People.
//	@BasePath		/
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/AnirudhBhanot/flashnew-sub008/docs"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/cache"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/database"
	apperrors "github.com/AnirudhBhanot/flashnew-sub008/internal/errors"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/middleware"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/monitoring"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/ratelimit"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/security"
)

// PredictPath is the only route that is rate limited and cached.
const PredictPath = "/api/v1/predict"

// Deps are the collaborators a Server routes requests to. Predictions,
// Limiter and Cache are optional.
type Deps struct {
	Orchestrator *analysis.Orchestrator
	Predictions  *database.PredictionService
	Security     *security.SecurityMiddleware
	Compression  *middleware.CompressionMiddleware
	Limiter      *ratelimit.RateLimiter
	Cache        *cache.Cache
	Metrics      *monitoring.Metrics
	Logger       *monitoring.Logger
	DB           *database.DB
}

// Server owns the gin engine and the handlers behind it
type Server struct {
	Deps
	router    *gin.Engine
	startTime time.Time
}

// NewServer wires middleware and routes
func NewServer(deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = &monitoring.Logger{Logger: slog.Default()}
	}
	if deps.Security == nil {
		deps.Security = security.NewSecurityMiddleware(security.DefaultSecurityConfig())
	}
	if deps.Compression == nil {
		deps.Compression = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	}

	s := &Server{Deps: deps, router: gin.New(), startTime: time.Now()}
	s.routes()
	return s
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(apperrors.RecoveryHandler())
	r.Use(apperrors.ErrorHandler())
	r.Use(monitoring.MonitoringMiddleware(s.Metrics, s.Logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.Logger, s.Security.Config().MaxBodyBytes))
	r.Use(s.Security.SecurityHeaders)
	r.Use(s.Security.CORS())
	r.Use(s.Security.RequestTimeout)
	r.Use(s.Security.ValidateContentType)
	r.Use(s.Security.LimitBody)
	r.Use(s.Compression.Handler())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	predict := []gin.HandlerFunc{}
	if s.Limiter != nil {
		predict = append(predict, s.Limiter.IPRateLimitMiddleware())
		v1.GET("/ratelimit", s.Limiter.HandleRateLimitStatus())
	}
	if s.Cache != nil {
		predict = append(predict, s.Cache.Middleware(s.Metrics, PredictPath, s.modelVersion))
	}
	predict = append(predict, s.handlePredict)
	v1.POST("/predict", predict...)

	v1.POST("/convert", s.handleConvert)
	v1.GET("/features", s.handleFeatures)
	v1.GET("/models", s.handleModels)
	v1.GET("/config/stage-weights", s.handleStageWeights)

	if s.Predictions != nil {
		history := v1.Group("/predictions")
		if s.Limiter != nil {
			// reads hit sqlite; budgeted apart from predict
			history.Use(s.Limiter.EndpointRateLimitMiddleware("predictions", s.Limiter.Config().IPLimitPerMin))
		}
		history.GET("", s.handleListPredictions)
		history.GET("/summary", s.handlePredictionSummary)
		history.GET("/:id", s.handleGetPrediction)
	}
}

// modelVersion keys cached responses to the active manifest
func (s *Server) modelVersion() string {
	snap := s.Orchestrator.Registry().Current()
	if snap == nil {
		return ""
	}
	return snap.Manifest.Version + "@" + snap.LoadedAt.Format(time.RFC3339Nano)
}

// fail hands err to the error middleware and stops the chain
func fail(c *gin.Context, err *apperrors.AppError) {
	_ = c.Error(err)
	c.Abort()
}
