package pgsderr

import (
	"fmt"
	"strings"
	"time"
)

// maxQueryLength bounds the query text stored in technical details. Longer
// queries are cut and marked with a trailing ellipsis.
const maxQueryLength = 500

// New creates a generic pgsd error (exit code 1, not retriable).
func New(message string) *Error {
	return newError(CategoryGeneric, "PGSD_ERROR", message, ExitGeneric, false)
}

// NewDatabaseError creates a general database-layer error (exit code 10).
func NewDatabaseError(message string, cause error) *Error {
	e := newError(CategoryDatabase, "DATABASE_ERROR", message, ExitDatabase, false)
	e.Cause = cause
	return e
}

// NewConnectionError creates a connection failure (host unreachable, auth
// failure, timeout). Retriable by default; surfaced to the user only after
// the retry manager gives up.
func NewConnectionError(host string, port int, database, user string, cause error) *Error {
	e := newError(CategoryConnection, "DB_CONNECTION_FAILED",
		fmt.Sprintf("failed to connect to database %q at %s:%d", database, host, port),
		ExitConnection, true)
	e.Cause = cause
	e.TechnicalDetails["host"] = host
	e.TechnicalDetails["port"] = port
	e.TechnicalDetails["database"] = database
	if user != "" {
		e.TechnicalDetails["user"] = user
	}
	e.AddRecoverySuggestion("Check that the PostgreSQL server is running and accepting connections")
	e.AddRecoverySuggestion("Verify the host, port and database name")
	e.AddRecoverySuggestion("Verify the user name and password")
	e.AddRecoverySuggestion("Check network connectivity and firewall rules")
	return e
}

// NewSchemaNotFoundError creates a schema-not-found failure. Never retried.
// The available schema list, when known, becomes an actionable suggestion.
func NewSchemaNotFoundError(schemaName, database string, available []string) *Error {
	e := newError(CategorySchema, "SCHEMA_NOT_FOUND",
		fmt.Sprintf("schema %q not found in database %q", schemaName, database),
		ExitSchemaNotFound, false)
	e.TechnicalDetails["schema_name"] = schemaName
	e.TechnicalDetails["database"] = database
	e.TechnicalDetails["available_schemas"] = available
	if len(available) > 0 {
		e.AddRecoverySuggestion(fmt.Sprintf("Available schemas: %s", strings.Join(available, ", ")))
	}
	e.AddRecoverySuggestion("Check the schema name for typos")
	return e
}

// NewPrivilegeError creates an insufficient-privileges failure. Never
// retried. requiredPrivileges lists what the operation needed (e.g. USAGE,
// SELECT); user and object are optional.
func NewPrivilegeError(operation string, requiredPrivileges []string, user, object string) *Error {
	e := newError(CategoryPrivilege, "INSUFFICIENT_PRIVILEGES",
		fmt.Sprintf("insufficient privileges for %s", operation),
		ExitPrivilege, false)
	e.TechnicalDetails["operation"] = operation
	e.TechnicalDetails["required_privileges"] = requiredPrivileges
	if user != "" {
		e.TechnicalDetails["user"] = user
	}
	if object != "" {
		e.TechnicalDetails["object"] = object
	}
	e.AddRecoverySuggestion(fmt.Sprintf("Grant the required privileges: %s", strings.Join(requiredPrivileges, ", ")))
	e.AddRecoverySuggestion("Run the comparison as a role with catalog read access")
	return e
}

// NewQueryError creates a query execution failure. Retriable by default
// (covers transient lock/timeout conditions); callers narrow the retry set
// when a failure is known to be deterministic. The query text is truncated
// to 500 characters in technical details.
func NewQueryError(query, dbMessage, sqlState string, cause error) *Error {
	e := newError(CategoryQuery, "QUERY_EXECUTION_FAILED",
		fmt.Sprintf("query execution failed: %s", dbMessage),
		ExitQuery, true)
	e.Cause = cause
	e.TechnicalDetails["query"] = truncateQuery(query)
	e.TechnicalDetails["db_message"] = dbMessage
	if sqlState != "" {
		e.TechnicalDetails["sql_state"] = sqlState
	}
	e.AddRecoverySuggestion("Retry the operation; transient lock or timeout conditions resolve on their own")
	return e
}

// NewValidationError creates an input validation failure (exit code 30).
// Never retried.
func NewValidationError(field string, value any, reason string) *Error {
	e := newError(CategoryValidation, "VALIDATION_ERROR",
		fmt.Sprintf("invalid value for %s: %s", field, reason),
		ExitValidation, false)
	e.TechnicalDetails["field"] = field
	e.TechnicalDetails["value"] = value
	e.TechnicalDetails["reason"] = reason
	return e
}

// NewProcessingError creates a processing failure (schema parsing,
// comparison step, report generation). Retriable by default with a short
// fixed backoff since these often wrap an upstream transient cause.
func NewProcessingError(stage string, cause error) *Error {
	e := newError(CategoryProcessing, "PROCESSING_ERROR",
		fmt.Sprintf("processing failed during %s", stage),
		ExitProcessing, true)
	e.Cause = cause
	e.TechnicalDetails["stage"] = stage
	e.BaseDelay = time.Second
	e.MaxRetryDelay = 10 * time.Second
	return e
}

func truncateQuery(query string) string {
	runes := []rune(query)
	if len(runes) <= maxQueryLength {
		return query
	}
	return string(runes[:maxQueryLength]) + "..."
}
