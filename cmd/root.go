package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgsd/pgsd/internal/pgsderr"
	"github.com/pgsd/pgsd/internal/version"
)

var Debug bool

var RootCmd = &cobra.Command{
	Use:   "pgsd",
	Short: "PostgreSQL schema comparison tool",
	Long: fmt.Sprintf(`pgsd compares the structure of two PostgreSQL schemas and reports the
differences as Markdown, HTML or JSON.

Version: %s@%s %s %s

Commands:
  compare Compare two schemas and render a report
  version Show version information

Use "pgsd [command] --help" for more information about a command.`,
		version.Version(), version.GetGitCommit(), version.Platform(), version.GetBuildDate()),
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(CompareCmd)
	RootCmd.AddCommand(VersionCmd)
}

// newLogger builds the process logger. It is constructed once per entry
// point and passed down to every component that needs it.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}

// Execute runs the root command and maps an unrecovered taxonomy error to
// its exit code, printing the message and its recovery suggestions.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		exitCode := 1

		var pgsdErr *pgsderr.Error
		if errors.As(err, &pgsdErr) {
			exitCode = pgsdErr.ExitCode()
			fmt.Fprintln(os.Stderr, "Error:", pgsdErr.Message)
			for _, suggestion := range pgsdErr.RecoverySuggestions {
				fmt.Fprintln(os.Stderr, "  -", suggestion)
			}
			if Debug {
				if serialized, jsonErr := pgsdErr.MarshalJSON(); jsonErr == nil {
					fmt.Fprintln(os.Stderr, string(serialized))
				}
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}

		os.Exit(exitCode)
	}
}
