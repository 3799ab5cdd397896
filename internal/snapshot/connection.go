package snapshot

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pgsd/pgsd/internal/pgsderr"
)

// ConnectionConfig holds database connection parameters for one side of a
// comparison.
type ConnectionConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string

	// Pool limits. Zero values keep the database/sql defaults.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Info returns the connection identity used for error classification.
func (c *ConnectionConfig) Info() pgsderr.ConnInfo {
	return pgsderr.ConnInfo{
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
	}
}

// Connect establishes a pooled database connection using the provided
// configuration. Failures come back as taxonomy connection errors.
func Connect(config *ConnectionConfig, logger *slog.Logger) (*sql.DB, error) {
	logger.Debug("attempting database connection",
		"host", config.Host,
		"port", config.Port,
		"database", config.Database,
		"user", config.User,
		"sslmode", config.SSLMode,
		"application_name", config.ApplicationName,
	)

	dsn := BuildDSN(config)
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, pgsderr.NewConnectionError(config.Host, config.Port, config.Database, config.User, err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// Test the connection
	if err := conn.Ping(); err != nil {
		logger.Debug("database ping failed", "error", err)
		conn.Close()
		return nil, pgsderr.Classify(err, config.Info(), "")
	}

	logger.Debug("database connection established")
	return conn, nil
}

// BuildDSN constructs a PostgreSQL connection string from connection
// parameters.
func BuildDSN(config *ConnectionConfig) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("host=%s", config.Host))
	parts = append(parts, fmt.Sprintf("port=%d", config.Port))
	parts = append(parts, fmt.Sprintf("dbname=%s", config.Database))
	parts = append(parts, fmt.Sprintf("user=%s", config.User))

	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", config.Password))
	}

	if config.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", config.SSLMode))
	}

	if config.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", config.ApplicationName))
	}

	return strings.Join(parts, " ")
}
