package engine

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/tickcore/internal/event"
)

// Engine is the module coordinator.
//
// The engine owns the three lifecycle channels and the running flag. Modules
// subscribe to the channels during factory setup; Start then broadcasts
// initialize, runs the tick loop, and broadcasts deinitialize.
//
// Thread-safety model:
//   - Start(): blocks the calling goroutine for the engine's whole active life
//   - Stop(), Running(), Frames(): safe from any goroutine, including from
//     inside a lifecycle listener
//   - AddModule(): intended for factory setup, before the loop starts
//
// INVARIANTS:
//   - running is set true only inside Start and cleared by Stop or loop exit
//   - initialize fires strictly before the first process broadcast
//   - deinitialize fires strictly after the last process broadcast
//   - at most one Start is active at a time (no reentrant loops)
type Engine struct {
	clock  Clock
	logger *slog.Logger

	running atomic.Bool
	active  atomic.Bool // a Start call is between its guard and its return
	frames  atomic.Int64

	initializeEvent   event.Event[InitializeArg]
	processEvent      event.Event[TickArg]
	deinitializeEvent event.Event[DeinitializeArg]

	mu      sync.Mutex
	modules []any
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the time source used for delta-time measurement.
//
// Default: NewMonotonicClock().
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger for lifecycle diagnostics.
//
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a stopped Engine. No module is touched until Start.
func New(opts ...Option) *Engine {
	e := &Engine{}

	for _, opt := range opts {
		opt(e)
	}

	if e.clock == nil {
		e.clock = NewMonotonicClock()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// InitializeEvent returns the channel broadcast once before the first tick.
func (e *Engine) InitializeEvent() *event.Event[InitializeArg] {
	return &e.initializeEvent
}

// ProcessEvent returns the channel broadcast once per loop iteration.
func (e *Engine) ProcessEvent() *event.Event[TickArg] {
	return &e.processEvent
}

// DeinitializeEvent returns the channel broadcast once after the loop exits.
func (e *Engine) DeinitializeEvent() *event.Event[DeinitializeArg] {
	return &e.deinitializeEvent
}

// Running reports whether the tick loop is iterating or about to iterate.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Frames returns the number of process broadcasts issued by the current (or
// most recent) Start call.
func (e *Engine) Frames() int64 {
	return e.frames.Load()
}

// Start sets up the engine with the given factory and runs it until Stop.
//
// Start is blocking: it returns only after the loop has exited and the
// deinitialize broadcast has completed.
//
// Error handling:
//   - already running: logs a warning and returns an ALREADY_RUNNING error;
//     the factory is neither invoked nor closed
//   - setup failure: logs an error and returns a SETUP_FAILED error without
//     firing any lifecycle event
//   - listener panic: the loop ends, deinitialize still fires, and a
//     LISTENER_PANIC error is returned
//
// If the factory implements io.Closer it is closed right after setup, on both
// the success and the failure path.
//
// Lifecycle subscriptions outlive Start. Modules added by an earlier Start
// keep receiving broadcasts in every later one, alongside whatever f adds.
// Restarting Instance() with a different factory therefore runs both
// module sets.
func (e *Engine) Start(f Factory) error {
	if !e.active.CompareAndSwap(false, true) {
		e.logger.Warn("ignoring start request, engine already running")
		return NewAlreadyRunningError()
	}
	defer e.active.Store(false)

	if err := e.setup(f); err != nil {
		e.logger.Error("factory setup failed", "error", err)
		return NewSetupError(err)
	}

	e.frames.Store(0)
	e.running.Store(true)
	e.logger.Info("engine starting",
		"initialize_listeners", e.initializeEvent.Len(),
		"process_listeners", e.processEvent.Len(),
		"deinitialize_listeners", e.deinitializeEvent.Len(),
	)

	runErr := e.broadcast(PhaseInitialize, e.initModules)
	if runErr == nil {
		runErr = e.broadcast(PhaseProcess, e.startGameLoop)
	}
	e.running.Store(false)

	if err := e.broadcast(PhaseDeinitialize, e.deinitModules); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			e.logger.Error("listener panicked during broadcast", "phase", PhaseDeinitialize, "error", err)
		}
	}

	if runErr != nil {
		e.logger.Error("engine stopped with error", "frames", e.frames.Load(), "error", runErr)
		return runErr
	}

	e.logger.Info("engine stopped", "frames", e.frames.Load())
	return nil
}

// Stop requests the loop to exit.
//
// Stop only clears the running flag. The loop observes it at the top of the
// next iteration, so a Stop issued from a process listener lets the current
// broadcast complete first. Calling Stop repeatedly, or while stopped, has no
// further effect.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// setup runs the factory and disposes it.
func (e *Engine) setup(f Factory) error {
	if f == nil {
		return errNilFactory
	}

	err := f.SetupEngine(e)

	if c, ok := f.(io.Closer); ok {
		if closeErr := c.Close(); closeErr != nil {
			e.logger.Error("error closing factory", "error", closeErr)
		}
	}

	return err
}

// broadcast runs fn, converting a listener panic into an EngineError.
func (e *Engine) broadcast(phase Phase, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.running.Store(false)
			err = NewListenerPanicError(phase, r)
		}
	}()

	fn()
	return nil
}

// initModules notifies every module subscribed to initialize.
func (e *Engine) initModules() {
	e.initializeEvent.Notify(InitializeArg{})
}

// deinitModules notifies every module subscribed to deinitialize.
func (e *Engine) deinitModules() {
	e.deinitializeEvent.Notify(DeinitializeArg{})
}
