package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// TraceResult holds the complete trace output for one journaled run.
type TraceResult struct {
	Run    store.Run     `json:"run"`
	Frames []store.Frame `json:"frames"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the frames of a journaled run",
		Long: `Show a journaled run and the delta time of each of its frames.

Examples:
  tickcore trace --db ./runs.db --run 01890a5d-ac96-774b-bcce-b302099a8057
  tickcore trace --db ./runs.db --run <id> --limit 20
  tickcore trace --db ./runs.db --run <id> --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Env.Database, "path to SQLite database (required, env TICKCORE_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most N frames (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	frames, err := st.ReadFrames(ctx, opts.RunID, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read frames", err)
	}

	result := TraceResult{Run: run, Frames: frames}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}

	outputTraceText(cmd.OutOrStdout(), result)
	return nil
}

// openExistingStore opens a database that must already exist on disk.
// store.Open would otherwise create an empty file for a mistyped path.
func openExistingStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--db is required (or set TICKCORE_DB)")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
		return nil, WrapExitError(ExitCommandError, "failed to stat database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) {
	r := result.Run
	fmt.Fprintf(w, "Run %s (#%d)\n", r.ID, r.Seq)
	fmt.Fprintf(w, "Config: %s\n", r.ConfigName)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(w, "Error:  %s\n", r.Error)
	}
	fmt.Fprintf(w, "Frames: %d (%.3fs)\n", r.Frames, r.TotalSeconds)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Frames ===")
	if len(result.Frames) == 0 {
		fmt.Fprintln(w, "  (no frames)")
		return
	}
	for _, f := range result.Frames {
		fmt.Fprintf(w, "  [%d] delta=%g\n", f.Frame, f.Delta)
	}
	if int64(len(result.Frames)) < r.Frames {
		fmt.Fprintf(w, "  ... %d more\n", r.Frames-int64(len(result.Frames)))
	}
}
