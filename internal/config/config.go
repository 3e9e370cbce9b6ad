package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AnirudhBhanot/flashnew-sub008/internal/errors"
)

// Config holds the service configuration read from the environment.
type Config struct {
	Port     string
	DataDir  string
	LogLevel slog.Level
	GinMode  string

	Models    ModelsConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	HTTP      HTTPConfig
}

// ModelsConfig controls the ensemble.
type ModelsConfig struct {
	ManifestPath     string
	WatchManifest    bool
	Concurrency      int
	OnnxLibraryPath  string
	OnnxThreads      int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// RedisConfig is optional; an empty Addr selects the in-memory limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	Persist    bool
}

type HTTPConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string
	EnableHSTS      bool
	EnableProfiling bool
}

// Load reads configuration from environment variables with defaults.
// Malformed values are configuration errors.
func Load() (Config, error) {
	p := &parser{}
	cfg := Config{
		Port:     getenv("PORT", "8080"),
		DataDir:  getenv("DATA_DIR", "./data"),
		LogLevel: ParseLevel(getenv("LOG_LEVEL", "info")),
		GinMode:  getenv("GIN_MODE", "release"),
		Models: ModelsConfig{
			ManifestPath:     getenv("CAMP_MANIFEST", "models/manifest.yaml"),
			WatchManifest:    p.bool("CAMP_WATCH_MANIFEST", false),
			Concurrency:      p.int("MODEL_CONCURRENCY", 4),
			OnnxLibraryPath:  os.Getenv("ONNXRUNTIME_LIB"),
			OnnxThreads:      p.int("ONNX_INTRA_OP_THREADS", 1),
			BreakerThreshold: p.int("MODEL_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  p.duration("MODEL_BREAKER_COOLDOWN", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			PerMinute: p.int("RATE_LIMIT_PER_MIN", 60),
			Burst:     p.int("RATE_LIMIT_BURST", 10),
		},
		Cache: CacheConfig{
			TTL:        p.duration("CACHE_TTL", 15*time.Minute),
			MaxEntries: p.int("CACHE_MAX_ENTRIES", 10000),
			Persist:    p.bool("PERSIST_PREDICTIONS", true),
		},
		HTTP: HTTPConfig{
			RequestTimeout:  p.duration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    int64(p.int("MAX_BODY_BYTES", 1<<20)),
			AllowedOrigins:  splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
			EnableHSTS:      p.bool("ENABLE_HSTS", false),
			EnableProfiling: p.bool("ENABLE_PROFILING", false),
		},
	}

	if p.err != nil {
		return Config{}, errors.NewConfigurationError(p.err.Error(), p.err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that the parsers cannot.
func (c Config) Validate() error {
	switch {
	case c.Models.ManifestPath == "":
		return errors.NewConfigurationError("CAMP_MANIFEST must not be empty", nil)
	case c.Models.Concurrency < 1:
		return errors.NewConfigurationError("MODEL_CONCURRENCY must be at least 1", nil)
	case c.RateLimit.PerMinute < 1:
		return errors.NewConfigurationError("RATE_LIMIT_PER_MIN must be at least 1", nil)
	case c.Cache.MaxEntries < 1:
		return errors.NewConfigurationError("CACHE_MAX_ENTRIES must be at least 1", nil)
	case c.HTTP.RequestTimeout <= 0:
		return errors.NewConfigurationError("REQUEST_TIMEOUT must be positive", nil)
	}
	return nil
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first malformed variable it sees.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s=%q: %w", key, value, err)
	}
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
