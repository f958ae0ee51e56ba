package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Env supplies flag defaults. The zero value means no overrides.
	Env Env
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tickcore CLI. Flag
// defaults come from e (see ParseEnv).
func NewRootCommand(e Env) *cobra.Command {
	opts := &RootOptions{Env: e}

	format := e.Format
	if format == "" {
		format = "text"
	}

	cmd := &cobra.Command{
		Use:   "tickcore",
		Short: "tickcore - module lifecycle engine",
		Long:  "Assemble engine modules from a config file, run the tick loop, and inspect journaled runs.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", e.Verbose, "verbose output (env TICKCORE_VERBOSE)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", format, "output format (json|text) (env TICKCORE_FORMAT)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newLogger builds the diagnostic logger for a command: text on w, debug
// level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
