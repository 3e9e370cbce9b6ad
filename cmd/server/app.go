package main

import (
	"context"
	"errors"
	"net/http/pprof"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/analysis"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/api"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/cache"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/config"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/database"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/models"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/monitoring"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/ratelimit"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/resilience"
	"github.com/AnirudhBhanot/flashnew-sub008/internal/security"
)

// app owns every long-lived component of the server process
type app struct {
	cfg      config.Config
	logger   *monitoring.Logger
	metrics  *monitoring.Metrics
	registry *models.Registry
	watcher  *models.Watcher
	db       *database.DB
	redis    *ratelimit.RedisClient
	limiter  *ratelimit.RateLimiter
	cache    *cache.Cache
	server   *api.Server
}

// newApp builds the component graph. Any error is a startup failure and
// everything opened so far is released.
func newApp(ctx context.Context, cfg config.Config, logger *monitoring.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: monitoring.NewMetrics()}
	if err := a.build(ctx); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) (err error) {
	cfg, logger := a.cfg, a.logger

	a.registry, err = models.NewRegistry(cfg.Models.ManifestPath, models.ONNXOptions{
		LibraryPath:    cfg.Models.OnnxLibraryPath,
		IntraOpThreads: cfg.Models.OnnxThreads,
	}, logger.Logger)
	if err != nil {
		return err
	}

	orchestrator := analysis.NewOrchestrator(a.registry,
		analysis.WithConcurrency(cfg.Models.Concurrency),
		analysis.WithBreakerConfig(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Models.BreakerThreshold,
			RecoveryTimeout:  cfg.Models.BreakerCooldown,
		}),
		analysis.WithObserver(monitoring.NewPredictionObserver(a.metrics, logger)),
		analysis.WithLogger(logger.Logger),
	)

	if cfg.Models.WatchManifest {
		a.watcher, err = models.NewWatcher(a.registry, 0, logger.Logger)
		if err != nil {
			return err
		}
		a.watcher.OnReload = func(reloadErr error) {
			a.metrics.RecordManifestReload(reloadErr)
			if reloadErr == nil {
				orchestrator.ModelsReloaded()
			}
		}
		if err = a.watcher.Start(ctx); err != nil {
			return err
		}
	}

	var predictions *database.PredictionService
	if cfg.Cache.Persist {
		a.db, err = database.NewDB(cfg.DataDir)
		if err != nil {
			return err
		}
		predictions = database.NewPredictionService(database.NewRepository(a.db), logger.Logger)
	}

	// an unreachable redis degrades to the in-memory limiter
	a.redis, err = ratelimit.NewRedisClient(ctx, ratelimit.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory rate limiting", "addr", cfg.Redis.Addr, "error", err)
		err = nil
	}
	a.limiter = ratelimit.NewRateLimiter(a.redis, ratelimit.Config{
		IPLimitPerMin: cfg.RateLimit.PerMinute,
		Burst:         cfg.RateLimit.Burst,
	}, a.metrics)

	if cfg.Cache.TTL > 0 {
		a.cache = cache.NewCache(cfg.Cache.TTL, cache.WithMaxEntries(cfg.Cache.MaxEntries))
	}

	a.server = api.NewServer(api.Deps{
		Orchestrator: orchestrator,
		Predictions:  predictions,
		Security: security.NewSecurityMiddleware(security.SecurityConfig{
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			EnableHSTS:     cfg.HTTP.EnableHSTS,
		}),
		Limiter: a.limiter,
		Cache:   a.cache,
		Metrics: a.metrics,
		Logger:  logger,
		DB:      a.db,
	})

	if cfg.HTTP.EnableProfiling {
		logger.Info("Enabling performance profiling endpoints")
		mountProfiling(a.server.Router())
	}

	return nil
}

// mountProfiling serves net/http/pprof under one catch-all route
func mountProfiling(r *gin.Engine) {
	r.GET("/debug/pprof/*name", func(c *gin.Context) {
		switch strings.TrimPrefix(c.Param("name"), "/") {
		case "cmdline":
			pprof.Cmdline(c.Writer, c.Request)
		case "profile":
			pprof.Profile(c.Writer, c.Request)
		case "symbol":
			pprof.Symbol(c.Writer, c.Request)
		case "trace":
			pprof.Trace(c.Writer, c.Request)
		default:
			pprof.Index(c.Writer, c.Request)
		}
	})
}

// close releases components in reverse start order. It is safe on a
// partially built app.
func (a *app) close() error {
	var errs []error
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.registry != nil {
		errs = append(errs, a.registry.Close())
	}
	return errors.Join(errs...)
}

