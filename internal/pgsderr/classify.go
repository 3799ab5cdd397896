package pgsderr

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnInfo identifies the connection a failure happened on, so classified
// errors carry enough detail for an actionable report.
type ConnInfo struct {
	Host     string
	Port     int
	Database string
	User     string
}

// Classify maps a raw driver error to a taxonomy member. Errors that are
// already *Error pass through unchanged. Acquisition code calls this before
// any retry decision so that retry policy operates on categories, never on
// driver-specific types.
func Classify(err error, conn ConnInfo, query string) *Error {
	if err == nil {
		return nil
	}

	var pgsdErr *Error
	if errors.As(err, &pgsdErr) {
		return pgsdErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewConnectionError(conn.Host, conn.Port, conn.Database, conn.User, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr, conn, query)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewConnectionError(conn.Host, conn.Port, conn.Database, conn.User, err)
	}

	return NewDatabaseError(err.Error(), err)
}

// classifyPgError maps SQLSTATE classes to error kinds.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
func classifyPgError(pgErr *pgconn.PgError, conn ConnInfo, query string) *Error {
	code := pgErr.Code
	switch {
	case len(code) >= 2 && code[:2] == "08": // connection exception
		return NewConnectionError(conn.Host, conn.Port, conn.Database, conn.User, pgErr)
	case len(code) >= 2 && code[:2] == "28": // invalid authorization
		e := NewConnectionError(conn.Host, conn.Port, conn.Database, conn.User, pgErr)
		e.AddDetail("sql_state", code)
		return e
	case code == "3D000": // invalid catalog name (unknown database)
		return NewConnectionError(conn.Host, conn.Port, conn.Database, conn.User, pgErr)
	case code == "3F000": // invalid schema name
		e := NewSchemaNotFoundError(pgErr.SchemaName, conn.Database, nil)
		e.Cause = pgErr
		return e
	case code == "42501": // insufficient privilege
		e := NewPrivilegeError("schema introspection", []string{"USAGE", "SELECT"}, conn.User, pgErr.TableName)
		e.Cause = pgErr
		return e
	case code == "57014", code == "55P03", code == "40P01":
		// statement canceled, lock not available, deadlock: transient
		return NewQueryError(query, pgErr.Message, code, pgErr)
	default:
		return NewQueryError(query, pgErr.Message, code, pgErr)
	}
}
