// Package pgsderr defines the error taxonomy shared by every pgsd component.
//
// Each failure carries a stable machine-readable code, a severity, a
// category, a process exit code and a retriability flag, so that callers
// (CLI, retry manager) can make policy decisions without matching message
// strings. Errors are created at the failure site with one of the New*
// constructors and enriched with context as they unwind.
package pgsderr

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Severity is the log level attached to an error.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Category groups errors for retry policy and reporting.
type Category string

const (
	CategoryGeneric    Category = "generic"
	CategoryDatabase   Category = "database"
	CategoryConnection Category = "connection"
	CategorySchema     Category = "schema"
	CategoryPrivilege  Category = "privilege"
	CategoryQuery      Category = "query"
	CategoryValidation Category = "validation"
	CategoryProcessing Category = "processing"
)

// Process exit codes, one per error kind. The CLI uses them verbatim as the
// process exit status.
const (
	ExitGeneric        = 1
	ExitDatabase       = 10
	ExitConnection     = 11
	ExitSchemaNotFound = 12
	ExitPrivilege      = 13
	ExitQuery          = 14
	ExitValidation     = 30
	ExitProcessing     = 40
)

// Error is the single error type produced by pgsd subsystems. Kind-specific
// constructors live in kinds.go; the shared envelope (id, timestamp,
// severity, context, recovery suggestions) is factored here.
type Error struct {
	ID                  string
	Timestamp           time.Time
	Severity            Severity
	Category            Category
	Code                string
	Message             string
	TechnicalDetails    map[string]any
	RecoverySuggestions []string
	Context             map[string]any
	Cause               error

	exitCode  int
	retriable bool

	// Backoff parameters consulted by RetryDelay. Kind defaults are set by
	// the constructors; the retry manager may use its own policy instead.
	BaseDelay     time.Duration
	MaxRetryDelay time.Duration
	BackoffFactor float64
}

// newError builds the shared envelope. Construction never fails; every
// field has a usable default.
func newError(category Category, code, message string, exitCode int, retriable bool) *Error {
	return &Error{
		ID:                  uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		Severity:            SeverityError,
		Category:            category,
		Code:                code,
		Message:             message,
		TechnicalDetails:    map[string]any{},
		RecoverySuggestions: []string{},
		Context:             map[string]any{},
		exitCode:            exitCode,
		retriable:           retriable,
		BaseDelay:           time.Second,
		MaxRetryDelay:       30 * time.Second,
		BackoffFactor:       2.0,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetriable reports the per-kind default, unless overridden on this
// instance via WithRetriable.
func (e *Error) IsRetriable() bool {
	return e.retriable
}

// WithRetriable overrides the kind default on this instance and returns
// the error for chaining.
func (e *Error) WithRetriable(retriable bool) *Error {
	e.retriable = retriable
	return e
}

// WithSeverity sets the severity and returns the error for chaining.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// ExitCode returns the process exit status for this error kind.
func (e *Error) ExitCode() int {
	return e.exitCode
}

// RetryDelay returns the backoff delay before the given retry attempt:
// BaseDelay * BackoffFactor^(attempt-1), capped at MaxRetryDelay.
// Attempt 0 (or below) means "before the first attempt" and yields zero.
// Only meaningful when IsRetriable is true.
func (e *Error) RetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := time.Duration(float64(e.BaseDelay) * math.Pow(e.BackoffFactor, float64(attempt-1)))
	if d > e.MaxRetryDelay || d < 0 {
		return e.MaxRetryDelay
	}
	return d
}

// AddContext records a key/value pair on the open context bag. Repeated
// keys overwrite the earlier value.
func (e *Error) AddContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// AddDetail records a key/value pair in the technical details bag.
func (e *Error) AddDetail(key string, value any) *Error {
	e.TechnicalDetails[key] = value
	return e
}

// AddRecoverySuggestion appends a suggestion, skipping exact-string repeats.
func (e *Error) AddRecoverySuggestion(text string) *Error {
	for _, s := range e.RecoverySuggestions {
		if s == text {
			return e
		}
	}
	e.RecoverySuggestions = append(e.RecoverySuggestions, text)
	return e
}

// ToMap returns the flat serialized form consumed by structured logging.
// The original cause, when present, is reflected as its string form and
// type name so it survives serialization.
func (e *Error) ToMap() map[string]any {
	m := map[string]any{
		"id":                   e.ID,
		"error_type":           string(e.Category),
		"error_code":           e.Code,
		"severity":             string(e.Severity),
		"category":             string(e.Category),
		"message":              e.Message,
		"technical_details":    e.TechnicalDetails,
		"recovery_suggestions": e.RecoverySuggestions,
		"context":              e.Context,
		"timestamp":            e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.Cause != nil {
		m["original_error_type"] = fmt.Sprintf("%T", e.Cause)
		m["original_error_message"] = e.Cause.Error()
	}
	return m
}

// MarshalJSON serializes the flat form from ToMap.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}
