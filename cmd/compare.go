package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pgsd/pgsd/internal/compare"
	"github.com/pgsd/pgsd/internal/config"
	"github.com/pgsd/pgsd/internal/report"
	"github.com/pgsd/pgsd/internal/retry"
	"github.com/pgsd/pgsd/internal/snapshot"
)

var (
	compareConfig string
	compareSchema string
	compareFormat string
	compareOutput string

	sourceHost     string
	sourcePort     int
	sourceDB       string
	sourceUser     string
	sourcePassword string
	sourceSchema   string
	sourceSSLMode  string

	targetHost     string
	targetPort     int
	targetDB       string
	targetUser     string
	targetPassword string
	targetSchema   string
	targetSSLMode  string
)

var CompareCmd = &cobra.Command{
	Use:          "compare",
	Short:        "Compare two PostgreSQL schemas",
	Long:         "Compare the structure of a source and a target schema (tables, columns, column types) and render the differences as a Markdown, HTML or JSON report.",
	RunE:         runCompare,
	SilenceUsage: true,
}

func init() {
	registerCompareFlags(CompareCmd)
}

func registerCompareFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&compareConfig, "config", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&compareSchema, "schema", "", "Schema name for both sides (shorthand for --source-schema and --target-schema)")
	cmd.Flags().StringVar(&compareFormat, "format", "", fmt.Sprintf("Report format: %s (default markdown)", strings.Join(report.Formats(), ", ")))
	cmd.Flags().StringVar(&compareOutput, "output", "", "Report output path (default stdout)")

	cmd.Flags().StringVar(&sourceHost, "source-host", "", "Source database server host (env: PGSD_SOURCE_HOST, PGHOST)")
	cmd.Flags().IntVar(&sourcePort, "source-port", 0, "Source database server port (env: PGSD_SOURCE_PORT, PGPORT)")
	cmd.Flags().StringVar(&sourceDB, "source-db", "", "Source database name (env: PGSD_SOURCE_DATABASE, PGDATABASE)")
	cmd.Flags().StringVar(&sourceUser, "source-user", "", "Source database user (env: PGSD_SOURCE_USER, PGUSER)")
	cmd.Flags().StringVar(&sourcePassword, "source-password", "", "Source database password (env: PGSD_SOURCE_PASSWORD, PGPASSWORD)")
	cmd.Flags().StringVar(&sourceSchema, "source-schema", "", "Source schema name (default public)")
	cmd.Flags().StringVar(&sourceSSLMode, "source-sslmode", "", "Source connection sslmode (default prefer)")

	cmd.Flags().StringVar(&targetHost, "target-host", "", "Target database server host (env: PGSD_TARGET_HOST)")
	cmd.Flags().IntVar(&targetPort, "target-port", 0, "Target database server port (env: PGSD_TARGET_PORT)")
	cmd.Flags().StringVar(&targetDB, "target-db", "", "Target database name (env: PGSD_TARGET_DATABASE)")
	cmd.Flags().StringVar(&targetUser, "target-user", "", "Target database user (env: PGSD_TARGET_USER)")
	cmd.Flags().StringVar(&targetPassword, "target-password", "", "Target database password (env: PGSD_TARGET_PASSWORD)")
	cmd.Flags().StringVar(&targetSchema, "target-schema", "", "Target schema name (default public)")
	cmd.Flags().StringVar(&targetSSLMode, "target-sslmode", "", "Target connection sslmode (default prefer)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(compareConfig)
	if err != nil {
		return err
	}
	applyCompareFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(debugEnabled(cfg))

	manager, err := retry.New(retryPolicy(cfg, logger))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Acquire both snapshots concurrently; the first failure cancels the
	// other side.
	g, gctx := errgroup.WithContext(ctx)
	var sourceSnap, targetSnap *snapshot.SchemaSnapshot
	g.Go(func() error {
		var err error
		sourceSnap, err = acquireSnapshot(gctx, cfg.Source, manager, logger.With("side", "source"))
		return err
	})
	g.Go(func() error {
		var err error
		targetSnap, err = acquireSnapshot(gctx, cfg.Target, manager, logger.With("side", "target"))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	result := compare.Compare(sourceSnap, targetSnap)
	logger.Info("comparison complete",
		"source_schema", result.SourceSchema,
		"target_schema", result.TargetSchema,
		"differences", len(result.Differences),
	)

	renderer, err := report.NewRenderer(cfg.Output.Format)
	if err != nil {
		return err
	}

	out := os.Stdout
	if cfg.Output.Path != "" {
		file, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}
	return renderer.Render(out, result)
}

// applyCompareFlags overlays explicitly set flags onto the configuration;
// flags take precedence over both the config file and the environment.
func applyCompareFlags(cmd *cobra.Command, cfg *config.Config) {
	flagString(cmd, "source-host", &cfg.Source.Host, sourceHost)
	flagInt(cmd, "source-port", &cfg.Source.Port, sourcePort)
	flagString(cmd, "source-db", &cfg.Source.Database, sourceDB)
	flagString(cmd, "source-user", &cfg.Source.User, sourceUser)
	flagString(cmd, "source-password", &cfg.Source.Password, sourcePassword)
	flagString(cmd, "source-schema", &cfg.Source.Schema, sourceSchema)
	flagString(cmd, "source-sslmode", &cfg.Source.SSLMode, sourceSSLMode)

	flagString(cmd, "target-host", &cfg.Target.Host, targetHost)
	flagInt(cmd, "target-port", &cfg.Target.Port, targetPort)
	flagString(cmd, "target-db", &cfg.Target.Database, targetDB)
	flagString(cmd, "target-user", &cfg.Target.User, targetUser)
	flagString(cmd, "target-password", &cfg.Target.Password, targetPassword)
	flagString(cmd, "target-schema", &cfg.Target.Schema, targetSchema)
	flagString(cmd, "target-sslmode", &cfg.Target.SSLMode, targetSSLMode)

	if cmd.Flags().Changed("schema") {
		cfg.Source.Schema = compareSchema
		cfg.Target.Schema = compareSchema
	}
	flagString(cmd, "format", &cfg.Output.Format, compareFormat)
	flagString(cmd, "output", &cfg.Output.Path, compareOutput)
}

func flagString(cmd *cobra.Command, name string, dst *string, value string) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

func flagInt(cmd *cobra.Command, name string, dst *int, value int) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

// debugEnabled merges the persistent --debug flag with the config file
// setting; either one enables debug logging.
func debugEnabled(cfg *config.Config) bool {
	return Debug || cfg.Debug
}

func retryPolicy(cfg *config.Config, logger *slog.Logger) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Retry.MaxAttempts
	policy.BaseDelay = time.Duration(cfg.Retry.BaseDelay)
	policy.MaxDelay = time.Duration(cfg.Retry.MaxDelay)
	policy.BackoffFactor = cfg.Retry.BackoffFactor
	policy.Jitter = cfg.Retry.Jitter
	policy.BeforeRetry = func(attempt int, err error) {
		logger.Warn("retrying after transient failure", "attempt", attempt, "error", err)
	}
	return policy
}

func acquireSnapshot(ctx context.Context, db config.Database, manager *retry.Manager, logger *slog.Logger) (*snapshot.SchemaSnapshot, error) {
	connConfig := &snapshot.ConnectionConfig{
		Host:            db.Host,
		Port:            db.Port,
		Database:        db.Database,
		User:            db.User,
		Password:        db.Password,
		SSLMode:         db.SSLMode,
		ApplicationName: "pgsd",
	}

	conn, err := snapshot.Connect(connConfig, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	builder := snapshot.NewBuilder(conn, connConfig.Info(), manager, logger)
	return builder.Snapshot(ctx, db.Schema)
}
