package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation            ErrorCategory = "validation"
	CategoryNotFound              ErrorCategory = "not_found"
	CategoryTimeout               ErrorCategory = "timeout"
	CategoryRateLimit             ErrorCategory = "rate_limit"
	CategoryInternal              ErrorCategory = "internal"
	CategoryConfiguration         ErrorCategory = "configuration"
	CategoryPredictionUnavailable ErrorCategory = "prediction_unavailable"
)

// AppError wraps an errbuilder error with HTTP context
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
	// Fields mirrors the errbuilder details as plain strings for responses
	Fields map[string]string `json:"details,omitempty"`
}

// Error renders the error with a stable code prefix
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.code(), e.ErrBuilder.Msg)
}

// categories maps each category to its wire code and the level it is logged at
var categories = map[ErrorCategory]struct {
	code  string
	level slog.Level
}{
	CategoryValidation:            {"VALIDATION_ERROR", slog.LevelWarn},
	CategoryNotFound:              {"NOT_FOUND", slog.LevelWarn},
	CategoryTimeout:               {"TIMEOUT_ERROR", slog.LevelInfo},
	CategoryRateLimit:             {"RATE_LIMIT_EXCEEDED", slog.LevelWarn},
	CategoryInternal:              {"INTERNAL_ERROR", slog.LevelError},
	CategoryConfiguration:         {"CONFIGURATION_ERROR", slog.LevelError},
	CategoryPredictionUnavailable: {"PREDICTION_UNAVAILABLE", slog.LevelError},
}

func (e *AppError) code() string {
	if c, ok := categories[e.Category]; ok {
		return c.code
	}
	return "UNKNOWN_ERROR"
}

func (e *AppError) level() slog.Level {
	if c, ok := categories[e.Category]; ok {
		return c.level
	}
	return slog.LevelError
}

// MarshalJSON renders the client-facing error body
func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code       string            `json:"code"`
		Message    string            `json:"message"`
		Category   ErrorCategory     `json:"category"`
		HTTPStatus int               `json:"http_status"`
		Timestamp  time.Time         `json:"timestamp"`
		RequestID  string            `json:"request_id,omitempty"`
		Details    map[string]string `json:"details,omitempty"`
		StackTrace string            `json:"stack_trace,omitempty"`
	}{
		Code:       e.code(),
		Message:    e.ErrBuilder.Msg,
		Category:   e.Category,
		HTTPStatus: e.HTTPStatus,
		Timestamp:  e.Timestamp,
		RequestID:  e.RequestID,
		Details:    e.Fields,
		StackTrace: e.StackTrace,
	})
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// newError attaches cause and fields to builder, mirroring fields into the errbuilder details
func newError(builder *errbuilder.ErrBuilder, cause error, fields map[string]string, category ErrorCategory, httpStatus int) *AppError {
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		errorMap := errbuilder.ErrorMap{}
		for _, key := range keys {
			errorMap.Set(key, errors.New(fields[key]))
		}
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}
	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(builder, category, httpStatus)
	appErr.Fields = fields
	return appErr
}

// NewValidationError creates a validation error
func NewValidationError(message string, details ...interface{}) *AppError {
	var fields map[string]string
	if len(details) > 0 {
		fields = map[string]string{"validation_details": fmt.Sprintf("%v", details[0])}
	}
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	return newError(builder, nil, fields, CategoryValidation, http.StatusBadRequest)
}

// NewRequestRejectedError is a validation error with a non-400 status,
// used for oversized bodies and unsupported media types
func NewRequestRejectedError(message string, httpStatus int) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	return newError(builder, nil, nil, CategoryValidation, httpStatus)
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(resource, id string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found", resource))
	return newError(builder, nil,
		map[string]string{resource: id}, CategoryNotFound, http.StatusNotFound)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)
	return newError(builder, cause, nil, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded")
	return newError(builder, nil,
		map[string]string{"retry_after": retryAfter}, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewPredictionUnavailableError reports that no model in the ensemble
// produced a usable probability. excluded maps model name to reason.
func NewPredictionUnavailableError(excluded map[string]string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg("Prediction unavailable: every model in the ensemble failed")
	return newError(builder, cause,
		excluded, CategoryPredictionUnavailable, http.StatusServiceUnavailable)
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error")
	appErr := newError(builder, cause,
		map[string]string{"internal_details": message}, CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}
	return appErr
}

// NewConfigurationError creates a configuration error. These abort startup.
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error")
	return newError(builder, cause,
		map[string]string{"config_details": message}, CategoryConfiguration, http.StatusInternalServerError)
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that renders the last handler error
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := ToAppError(c.Errors.Last().Err)
			appErr.RequestID = c.GetHeader("X-Request-ID")

			LogError(c, appErr)

			if !c.Writer.Written() {
				c.JSON(appErr.HTTPStatus, appErr)
			}
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs an error at the level its category maps to
func LogError(c *gin.Context, err *AppError) {
	attrs := []any{
		"error_code", err.code(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"route", c.FullPath(),
		"request_id", err.RequestID,
	}
	if len(err.Fields) > 0 {
		attrs = append(attrs, "details", err.Fields)
	}
	if cause := err.ErrBuilder.Unwrap(); cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	slog.Log(c.Request.Context(), err.level(), err.ErrBuilder.Msg, attrs...)

	if err.StackTrace != "" && gin.Mode() != gin.ReleaseMode {
		slog.Debug("stack_trace", "request_id", err.RequestID, "trace", err.StackTrace)
	}
}
