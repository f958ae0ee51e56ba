package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcore/internal/config"
	"github.com/roach88/tickcore/internal/devices"
	"github.com/roach88/tickcore/internal/engine"
	"github.com/roach88/tickcore/internal/journal"
	"github.com/roach88/tickcore/internal/metrics"
	"github.com/roach88/tickcore/internal/modules"
	"github.com/roach88/tickcore/internal/store"
	"github.com/roach88/tickcore/internal/stream"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Frames      int64
	Listen      string
	StreamEvery int64

	// IDGenerator allows overriding the journal run ID generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	IDGenerator journal.IDGenerator
}

// RunSummary is the output of a completed run.
type RunSummary struct {
	Config         string                 `json:"config"`
	ConfigHash     string                 `json:"config_hash"`
	Frames         int64                  `json:"frames"`
	RunID          string                 `json:"run_id,omitempty"`
	JournalErrors  int64                  `json:"journal_errors,omitempty"`
	JournalDropped int64                  `json:"journal_dropped,omitempty"`
	Stats          *modules.StatsSnapshot `json:"stats,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Assemble modules from a config and run the engine",
		Long: `Load an assembly config, build its modules, and run the tick loop.

The loop runs until a module stops it (frame_limit, deadline) or the process
receives SIGINT/SIGTERM. A journal module writes the run to the database
given with --db.

Examples:
  tickcore run ./demo.yaml
  tickcore run ./demo.yaml --frames 600
  tickcore run ./journaled.yaml --db ./runs.db --format json
  tickcore run ./demo.yaml --listen :9090

With --listen, Prometheus metrics are served at /metrics and lifecycle events
are streamed as JSON over a WebSocket at /stream. When the assembly has a
virtual_mouse, its events are streamed too, and a client can drive it by
sending {"move":[x,y]}, {"press":"left"} or {"release":"left"}.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", opts.Env.Database, "path to SQLite database for journal modules (env TICKCORE_DB)")
	cmd.Flags().Int64Var(&opts.Frames, "frames", 0, "stop after N frames (0 = no limit)")
	cmd.Flags().StringVar(&opts.Listen, "listen", opts.Env.Listen, "serve /metrics and /stream on this address while running (env TICKCORE_LISTEN)")
	cmd.Flags().Int64Var(&opts.StreamEvery, "stream-every", 1, "forward every Nth frame to /stream clients")

	return cmd
}

func runEngine(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Frames < 0 {
		return NewExitError(ExitCommandError, "--frames must be non-negative")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return configLoadError(err)
	}
	logger.Debug("config loaded", "name", cfg.Name, "modules", len(cfg.Modules))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	factoryOpts := []config.FactoryOption{
		config.WithLogger(logger),
		config.WithContext(ctx),
	}
	if opts.IDGenerator != nil {
		factoryOpts = append(factoryOpts, config.WithIDGenerator(opts.IDGenerator))
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		factoryOpts = append(factoryOpts, config.WithStore(st))
	}

	factory := config.NewFactory(cfg, factoryOpts...)
	eng := engine.New(engine.WithClock(cfg.NewClock()), engine.WithLogger(logger))

	var extra []any
	if opts.Frames > 0 {
		extra = append(extra, modules.NewFrameLimit(opts.Frames))
	}

	var hub *stream.Hub
	if opts.Listen != "" {
		collector := metrics.NewCollector("")
		hub = stream.NewHub(stream.WithLogger(logger), stream.WithEvery(opts.StreamEvery))
		extra = append(extra, collector, hub)

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.Handle("/stream", hub)

		_, shutdown, err := serve(opts.Listen, mux, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen", err)
		}
		defer shutdown()
		defer hub.Close()
	}

	setup := assembly(factory, extra, hub, logger)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go stopOnSignal(ctx, sigChan, eng.Stop, func() { signal.Stop(sigChan) }, logger)

	if !formatter.IsJSON() {
		fmt.Fprintf(cmd.OutOrStdout(), "Running %s (%d modules). Press Ctrl-C to stop.\n", cfg.Name, len(cfg.Modules))
	}

	startErr := eng.Start(setup)

	summary := RunSummary{
		Config:     cfg.Name,
		ConfigHash: cfg.Hash(),
		Frames:     eng.Frames(),
	}
	if j := factory.Journal(); j != nil {
		if startErr != nil {
			j.RecordFailure(startErr)
		}
		summary.RunID = j.RunID()
		summary.JournalErrors = j.Errors()
		summary.JournalDropped = j.Dropped()
	}
	if s := factory.Stats(); s != nil {
		snap := s.Snapshot()
		summary.Stats = &snap
	}

	if startErr != nil {
		if errors.Is(startErr, config.ErrJournalNeedsStore) {
			_ = formatter.Error(ErrCodeEngine, "journal module requires --db", nil)
			return WrapExitError(ExitCommandError, "journal module requires --db", startErr)
		}
		_ = formatter.Error(ErrCodeEngine, startErr.Error(), summary)
		return WrapExitError(ExitFailure, "engine error", startErr)
	}

	if formatter.IsJSON() {
		return formatter.Success(summary)
	}
	printRunSummary(cmd.OutOrStdout(), summary)
	return nil
}

// assembly returns the engine setup for a run: the config's modules, then
// extra, then hub (when non-nil) connected to the assembly's mouse.
func assembly(factory *config.Factory, extra []any, hub *stream.Hub, logger *slog.Logger) engine.FactoryFunc {
	return func(e *engine.Engine) error {
		if err := factory.SetupEngine(e); err != nil {
			return err
		}
		if err := e.AddModules(extra...); err != nil {
			return err
		}
		if hub != nil {
			if m, ok := devices.FindMouse(e); ok {
				hub.AttachMouse(m)
				logger.Debug("streaming mouse events")
			}
		}
		return nil
	}
}

// stopOnSignal calls stop on the first signal from sigs, then release, so
// a second signal gets the default handling and can kill a hung run.
func stopOnSignal(ctx context.Context, sigs <-chan os.Signal, stop, release func(), logger *slog.Logger) {
	select {
	case sig := <-sigs:
		logger.Info("received signal, stopping engine", "signal", sig)
		stop()
		release()
	case <-ctx.Done():
	}
}

// serve starts an HTTP server for handler on addr. It returns the bound
// address and a function that shuts the server down.
func serve(addr string, handler http.Handler, logger *slog.Logger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
	}()
	logger.Info("serving metrics and stream", "addr", ln.Addr().String())

	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("error stopping http server", "error", err)
		}
	}, nil
}

// configLoadError maps a config.Load failure to an exit error.
func configLoadError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return WrapExitError(ExitCommandError, "config not found", err)
	}
	return WrapExitError(ExitCommandError, "invalid config", err)
}

func printRunSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "Engine stopped after %d frame(s)\n", s.Frames)
	if s.RunID != "" {
		fmt.Fprintf(w, "  Run:     %s\n", s.RunID)
	}
	if s.JournalDropped > 0 {
		fmt.Fprintf(w, "  Journal: %d store error(s), %d frame(s) dropped\n", s.JournalErrors, s.JournalDropped)
	} else if s.JournalErrors > 0 {
		fmt.Fprintf(w, "  Journal: %d store error(s)\n", s.JournalErrors)
	}
	if s.Stats != nil && s.Stats.Frames > 0 {
		fmt.Fprintf(w, "  Time:    %.3fs\n", s.Stats.Total)
		fmt.Fprintf(w, "  Delta:   min %.4fs  mean %.4fs  max %.4fs\n", s.Stats.MinDelta, s.Stats.Mean, s.Stats.MaxDelta)
	}
}
