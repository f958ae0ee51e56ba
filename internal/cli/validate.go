package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Name    string         `json:"name,omitempty"`
	Hash    string         `json:"hash,omitempty"`
	Modules int            `json:"modules"`
	Issues  []config.Issue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate an assembly config",
		Long: `Validate an assembly config without running it.

Checks YAML syntax, rejects unknown keys, and validates the document against
the embedded CUE schema. Every schema violation is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("config not found: %s", path), nil)
			return WrapExitError(ExitCommandError, "config not found", err)
		}

		result := ValidationResult{Valid: false}
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			result.Issues = verr.Issues
		} else {
			result.Issues = []config.Issue{{Message: err.Error()}}
		}
		outputValidation(formatter, result)
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation issue(s)", len(result.Issues)))
	}

	outputValidation(formatter, ValidationResult{
		Valid:   true,
		Name:    cfg.Name,
		Hash:    cfg.Hash(),
		Modules: len(cfg.Modules),
	})
	return nil
}

func outputValidation(f *OutputFormatter, result ValidationResult) {
	if f.IsJSON() {
		if result.Valid {
			_ = f.Success(result)
			return
		}
		_ = f.Error(ErrCodeInvalidConfig, "config is invalid", result)
		return
	}

	if result.Valid {
		fmt.Fprintf(f.Writer, "✓ %s is valid (%d modules)\n", result.Name, result.Modules)
		f.VerboseLog("hash: %s", result.Hash)
		return
	}

	fmt.Fprintf(f.Writer, "✗ config is invalid\n")
	for _, is := range result.Issues {
		fmt.Fprintf(f.Writer, "  %s\n", is.String())
	}
}
