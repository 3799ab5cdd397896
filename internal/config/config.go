// Package config loads and merges pgsd configuration. Precedence, lowest
// to highest: built-in defaults, YAML config file, environment variables,
// command-line flags (applied by the cmd layer).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pgsd/pgsd/internal/pgsderr"
)

// Config is the full pgsd configuration.
type Config struct {
	Source Database `yaml:"source"`
	Target Database `yaml:"target"`
	Output Output   `yaml:"output"`
	Retry  Retry    `yaml:"retry"`
	Debug  bool     `yaml:"debug"`
}

// Database holds connection parameters for one comparison side.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Schema   string `yaml:"schema"`
}

// Output selects the report format and destination.
type Output struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"` // empty means stdout
}

// Retry holds the snapshot acquisition retry tunables.
type Retry struct {
	MaxAttempts   int      `yaml:"max_attempts"`
	BaseDelay     Duration `yaml:"base_delay"`
	MaxDelay      Duration `yaml:"max_delay"`
	BackoffFactor float64  `yaml:"backoff_factor"`
	Jitter        bool     `yaml:"jitter"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "1s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Source: defaultDatabase(),
		Target: defaultDatabase(),
		Output: Output{Format: "markdown"},
		Retry: Retry{
			MaxAttempts:   3,
			BaseDelay:     Duration(time.Second),
			MaxDelay:      Duration(30 * time.Second),
			BackoffFactor: 2.0,
			Jitter:        true,
		},
	}
}

func defaultDatabase() Database {
	return Database{
		Host:    "localhost",
		Port:    5432,
		SSLMode: "prefer",
		Schema:  "public",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pgsderr.NewValidationError("config", path, fmt.Sprintf("cannot read config file: %v", err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, pgsderr.NewValidationError("config", path, fmt.Sprintf("invalid YAML: %v", err))
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the configuration.
// PGSD_SOURCE_* and PGSD_TARGET_* address one side each; the libpq
// variables (PGHOST, PGPORT, PGDATABASE, PGUSER, PGPASSWORD) apply to the
// source side when no PGSD_SOURCE_* override is present.
func (c *Config) ApplyEnv() {
	// libpq variables are the weaker overlay; the tool-specific
	// PGSD_SOURCE_* variables applied afterwards win over them.
	setString(&c.Source.Host, "PGHOST")
	setInt(&c.Source.Port, "PGPORT")
	setString(&c.Source.Database, "PGDATABASE")
	setString(&c.Source.User, "PGUSER")
	setString(&c.Source.Password, "PGPASSWORD")

	applyDatabaseEnv(&c.Source, "PGSD_SOURCE_")
	applyDatabaseEnv(&c.Target, "PGSD_TARGET_")

	setString(&c.Output.Format, "PGSD_OUTPUT_FORMAT")
	setString(&c.Output.Path, "PGSD_OUTPUT_PATH")
}

func applyDatabaseEnv(db *Database, prefix string) {
	setString(&db.Host, prefix+"HOST")
	setInt(&db.Port, prefix+"PORT")
	setString(&db.Database, prefix+"DATABASE")
	setString(&db.User, prefix+"USER")
	setString(&db.Password, prefix+"PASSWORD")
	setString(&db.SSLMode, prefix+"SSLMODE")
	setString(&db.Schema, prefix+"SCHEMA")
}

func setString(dst *string, envVar string) {
	if value := os.Getenv(envVar); value != "" {
		*dst = value
	}
}

func setInt(dst *int, envVar string) {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			*dst = intValue
		}
	}
}

// Validate checks that both sides are sufficiently specified.
func (c *Config) Validate() error {
	if err := c.Source.validate("source"); err != nil {
		return err
	}
	if err := c.Target.validate("target"); err != nil {
		return err
	}
	return nil
}

func (d *Database) validate(side string) error {
	if d.Database == "" {
		return pgsderr.NewValidationError(side+".database", "", "database name is required")
	}
	if d.User == "" {
		return pgsderr.NewValidationError(side+".user", "", "database user is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return pgsderr.NewValidationError(side+".port", d.Port, "port must be between 1 and 65535")
	}
	if d.Schema == "" {
		return pgsderr.NewValidationError(side+".schema", "", "schema name is required")
	}
	return nil
}
