package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgsd/pgsd/internal/config"
)

// parseCompareFlags builds a throwaway command with a fresh flag set,
// parses args through it, and applies the overrides.
func parseCompareFlags(t *testing.T, cfg *config.Config, args []string) {
	t.Helper()
	cmd := &cobra.Command{Use: "compare", Run: func(*cobra.Command, []string) {}}
	registerCompareFlags(cmd)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("flag parsing failed: %v", err)
	}
	applyCompareFlags(cmd, cfg)
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Host = "from-config"
	cfg.Source.Database = "app"
	cfg.Output.Format = "json"

	parseCompareFlags(t, cfg, []string{
		"--source-host", "from-flag",
		"--target-port", "6432",
		"--format", "html",
	})

	if cfg.Source.Host != "from-flag" {
		t.Errorf("source host = %s; want the flag to win", cfg.Source.Host)
	}
	if cfg.Target.Port != 6432 {
		t.Errorf("target port = %d", cfg.Target.Port)
	}
	if cfg.Output.Format != "html" {
		t.Errorf("format = %s", cfg.Output.Format)
	}
	// Untouched values survive.
	if cfg.Source.Database != "app" {
		t.Errorf("source database = %s", cfg.Source.Database)
	}
}

func TestSchemaShorthandAppliesToBothSides(t *testing.T) {
	cfg := config.Default()

	parseCompareFlags(t, cfg, []string{"--schema", "billing"})

	if cfg.Source.Schema != "billing" || cfg.Target.Schema != "billing" {
		t.Errorf("schemas = %s/%s; want billing on both sides", cfg.Source.Schema, cfg.Target.Schema)
	}
}

func TestUnsetFlagsLeaveConfigAlone(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Host = "keep-me"

	parseCompareFlags(t, cfg, []string{})

	if cfg.Source.Host != "keep-me" {
		t.Errorf("source host = %s; unset flag overwrote config", cfg.Source.Host)
	}
}

func TestDebugEnabledFromFlagOrConfig(t *testing.T) {
	cfg := config.Default()
	if debugEnabled(cfg) {
		t.Error("debug enabled with neither flag nor config set")
	}

	cfg.Debug = true
	if !debugEnabled(cfg) {
		t.Error("config debug setting ignored")
	}

	cfg.Debug = false
	Debug = true
	defer func() { Debug = false }()
	if !debugEnabled(cfg) {
		t.Error("--debug flag ignored")
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Retry.MaxAttempts = 7
	cfg.Retry.BaseDelay = config.Duration(2 * time.Second)
	cfg.Retry.MaxDelay = config.Duration(time.Minute)
	cfg.Retry.BackoffFactor = 3.0
	cfg.Retry.Jitter = false

	policy := retryPolicy(cfg, slog.Default())

	if policy.MaxAttempts != 7 || policy.BackoffFactor != 3.0 || policy.Jitter {
		t.Errorf("policy = %+v", policy)
	}
	if policy.BaseDelay != 2*time.Second || policy.MaxDelay != time.Minute {
		t.Errorf("delays = %v/%v", policy.BaseDelay, policy.MaxDelay)
	}
	if policy.BeforeRetry == nil {
		t.Error("BeforeRetry logging hook missing")
	}
}
