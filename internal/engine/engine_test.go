package engine

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcore/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, steps ...float64) *Engine {
	t.Helper()
	return New(
		WithClock(testutil.NewSteppedClock(steps...)),
		WithLogger(discardLogger()),
	)
}

// recorder logs every lifecycle callback it receives.
type recorder struct {
	events []string
	deltas []float64
	frames []int64
}

func (r *recorder) Initialize() { r.events = append(r.events, "initialize") }

func (r *recorder) Process(arg TickArg) {
	r.events = append(r.events, "process")
	r.deltas = append(r.deltas, arg.DeltaTime)
	r.frames = append(r.frames, arg.Frame)
}

func (r *recorder) Deinitialize() { r.events = append(r.events, "deinitialize") }

func (r *recorder) count(name string) int {
	n := 0
	for _, ev := range r.events {
		if ev == name {
			n++
		}
	}
	return n
}

// stopAfter stops the engine when its process counter reaches limit.
type stopAfter struct {
	engine *Engine
	limit  int
	count  int
}

func (s *stopAfter) Register(e *Engine) { s.engine = e }

func (s *stopAfter) Process(TickArg) {
	s.count++
	if s.count == s.limit {
		s.engine.Stop()
	}
}

// modulesFactory registers the given modules during setup.
func modulesFactory(mods ...any) FactoryFunc {
	return func(e *Engine) error {
		for _, m := range mods {
			if err := e.AddModule(m); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestEngine_New(t *testing.T) {
	e := New()
	require.NotNil(t, e)
	assert.False(t, e.Running())
	assert.Equal(t, int64(0), e.Frames())
	assert.NotNil(t, e.clock)
	assert.NotNil(t, e.logger)
	assert.Empty(t, e.Modules())
	assert.Equal(t, 0, e.ProcessEvent().Len())
}

func TestEngine_StopAfterFiveFrames(t *testing.T) {
	e := newTestEngine(t, 0.5)
	rec := &recorder{}
	stopper := &stopAfter{limit: 5}

	err := e.Start(modulesFactory(rec, stopper))
	require.NoError(t, err)

	assert.Equal(t, 5, stopper.count)
	assert.Equal(t, 1, rec.count("initialize"))
	assert.Equal(t, 5, rec.count("process"))
	assert.Equal(t, 1, rec.count("deinitialize"))
	assert.Equal(t, "deinitialize", rec.events[len(rec.events)-1])
	assert.False(t, e.Running())
	assert.Equal(t, int64(5), e.Frames())
}

func TestEngine_LifecycleOrdering(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}

	err := e.Start(modulesFactory(rec, &stopAfter{limit: 3}))
	require.NoError(t, err)

	assert.Equal(t, []string{"initialize", "process", "process", "process", "deinitialize"}, rec.events)
	assert.Equal(t, []int64{1, 2, 3}, rec.frames)
}

func TestEngine_DeltaEqualsClockDifference(t *testing.T) {
	steps := []float64{0.5, 0.25, 0.125, 1}
	e := newTestEngine(t, steps...)
	rec := &recorder{}

	err := e.Start(modulesFactory(rec, &stopAfter{limit: 4}))
	require.NoError(t, err)

	assert.Equal(t, steps, rec.deltas)
	for _, d := range rec.deltas {
		assert.GreaterOrEqual(t, d, 0.0)
	}
}

func TestEngine_FirstDeltaExcludesSetupAndInitialize(t *testing.T) {
	clock := testutil.NewManualClock(0)
	e := New(WithClock(clock), WithLogger(discardLogger()))
	rec := &recorder{}

	factory := FactoryFunc(func(e *Engine) error {
		clock.Advance(100) // slow setup
		e.InitializeEvent().AttachFunc(func(InitializeArg) { clock.Advance(50) })
		e.ProcessEvent().AttachFunc(func(TickArg) { clock.Advance(0.5) })
		return e.AddModule(rec)
	})
	e.AddModule(&stopAfter{limit: 3})

	require.NoError(t, e.Start(factory))

	// frame 1 is measured from loop entry, after setup and initialize
	assert.Equal(t, []float64{0, 0.5, 0.5}, rec.deltas)
}

func TestEngine_DeltaSpikesPassThrough(t *testing.T) {
	e := newTestEngine(t, 0.125, 64, 0.125)
	rec := &recorder{}

	require.NoError(t, e.Start(modulesFactory(rec, &stopAfter{limit: 3})))
	assert.Equal(t, []float64{0.125, 64, 0.125}, rec.deltas)
}

func TestEngine_StopInsideListenerCompletesCurrentBroadcast(t *testing.T) {
	e := newTestEngine(t)
	var firstSaw, secondSaw []int64

	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		firstSaw = append(firstSaw, arg.Frame)
		if arg.Frame == 2 {
			e.Stop()
		}
	})
	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		secondSaw = append(secondSaw, arg.Frame)
	})

	require.NoError(t, e.Start(FactoryFunc(func(*Engine) error { return nil })))

	assert.Equal(t, []int64{1, 2}, firstSaw)
	assert.Equal(t, []int64{1, 2}, secondSaw, "sibling after Stop caller still receives the current tick")
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	e.Stop()
	e.Stop()
	assert.False(t, e.Running())

	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		e.Stop()
		e.Stop()
	})
	require.NoError(t, e.Start(FactoryFunc(func(*Engine) error { return nil })))
	assert.Equal(t, int64(1), e.Frames())
}

func TestEngine_StopDuringInitializeSkipsLoop(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}
	e.InitializeEvent().AttachFunc(func(InitializeArg) { e.Stop() })

	require.NoError(t, e.Start(modulesFactory(rec)))
	assert.Equal(t, []string{"initialize", "deinitialize"}, rec.events)
	assert.Equal(t, int64(0), e.Frames())
}

func TestEngine_RunningObservedByListeners(t *testing.T) {
	e := newTestEngine(t)
	var duringInit, duringProcess, duringDeinit bool

	e.InitializeEvent().AttachFunc(func(InitializeArg) { duringInit = e.Running() })
	e.ProcessEvent().AttachFunc(func(TickArg) {
		duringProcess = e.Running()
		e.Stop()
	})
	e.DeinitializeEvent().AttachFunc(func(DeinitializeArg) { duringDeinit = e.Running() })

	require.NoError(t, e.Start(FactoryFunc(func(*Engine) error { return nil })))

	assert.True(t, duringInit)
	assert.True(t, duringProcess)
	assert.False(t, duringDeinit)
	assert.False(t, e.Running())
}

func TestEngine_SetupFailure(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}
	cause := errors.New("renderer unavailable")

	err := e.Start(FactoryFunc(func(e *Engine) error {
		require.NoError(t, e.AddModule(rec))
		return cause
	}))

	require.Error(t, err)
	assert.True(t, IsSetupFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, e.Running())
	assert.Empty(t, rec.events, "no lifecycle event may fire after a failed setup")
	assert.Equal(t, int64(0), e.Frames())
}

func TestEngine_NilFactoryIsSetupFailure(t *testing.T) {
	e := newTestEngine(t)
	err := e.Start(nil)
	assert.True(t, IsSetupFailure(err))
	assert.False(t, e.Running())
}

func TestEngine_RetryAfterSetupFailure(t *testing.T) {
	e := newTestEngine(t)
	attempts := 0

	factory := FactoryFunc(func(e *Engine) error {
		attempts++
		if attempts == 1 {
			return errors.New("first attempt fails")
		}
		return e.AddModule(&stopAfter{limit: 2})
	})

	assert.True(t, IsSetupFailure(e.Start(factory)))
	require.NoError(t, e.Start(factory))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(2), e.Frames())
}

func TestEngine_SetupFailureLogsError(t *testing.T) {
	var buf bytes.Buffer
	e := New(
		WithClock(testutil.NewSteppedClock()),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	_ = e.Start(FactoryFunc(func(*Engine) error { return errors.New("nope") }))

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "factory setup failed")
}

// closingFactory records setup and close calls into a shared log.
type closingFactory struct {
	log      *[]string
	setupErr error
	closeErr error
}

func (f *closingFactory) SetupEngine(e *Engine) error {
	*f.log = append(*f.log, "setup")
	e.InitializeEvent().AttachFunc(func(InitializeArg) { *f.log = append(*f.log, "initialize") })
	e.ProcessEvent().AttachFunc(func(TickArg) { e.Stop() })
	return f.setupErr
}

func (f *closingFactory) Close() error {
	*f.log = append(*f.log, "close")
	return f.closeErr
}

func TestEngine_FactoryClosedAfterSuccessfulSetup(t *testing.T) {
	e := newTestEngine(t)
	var log []string

	require.NoError(t, e.Start(&closingFactory{log: &log}))
	assert.Equal(t, []string{"setup", "close", "initialize"}, log)
}

func TestEngine_FactoryClosedAfterFailedSetup(t *testing.T) {
	e := newTestEngine(t)
	var log []string

	err := e.Start(&closingFactory{log: &log, setupErr: errors.New("bad")})
	assert.True(t, IsSetupFailure(err))
	assert.Equal(t, []string{"setup", "close"}, log)
}

func TestEngine_FactoryCloseErrorDoesNotFailStart(t *testing.T) {
	e := newTestEngine(t)
	var log []string

	err := e.Start(&closingFactory{log: &log, closeErr: errors.New("close failed")})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), e.Frames())
}

func TestEngine_RedundantStartFromListener(t *testing.T) {
	var buf bytes.Buffer
	e := New(
		WithClock(testutil.NewSteppedClock()),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)

	var log []string
	second := &closingFactory{log: &log}
	var nestedErr error

	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		if arg.Frame == 1 {
			nestedErr = e.Start(second)
		}
		if arg.Frame == 3 {
			e.Stop()
		}
	})

	require.NoError(t, e.Start(FactoryFunc(func(*Engine) error { return nil })))

	assert.True(t, IsAlreadyRunning(nestedErr))
	assert.Empty(t, log, "redundant start must not invoke or close the factory")
	assert.Equal(t, int64(3), e.Frames(), "the running loop is unaffected")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "already running")
}

func TestEngine_RedundantStartFromAnotherGoroutine(t *testing.T) {
	e := New(WithLogger(discardLogger()))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		if arg.Frame == 1 {
			close(started)
			<-release
		}
		if arg.Frame == 3 {
			e.Stop()
		}
	})

	go func() {
		done <- e.Start(FactoryFunc(func(*Engine) error { return nil }))
	}()

	<-started
	assert.True(t, e.Running())

	secondCalled := false
	err := e.Start(FactoryFunc(func(*Engine) error {
		secondCalled = true
		return nil
	}))
	assert.True(t, IsAlreadyRunning(err))
	assert.False(t, secondCalled)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, int64(3), e.Frames())
}

func TestEngine_StopFromAnotherGoroutine(t *testing.T) {
	e := New(WithLogger(discardLogger()))
	ticking := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var deltas []float64

	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		mu.Lock()
		deltas = append(deltas, arg.DeltaTime)
		mu.Unlock()
		once.Do(func() { close(ticking) })
	})

	done := make(chan error, 1)
	go func() {
		done <- e.Start(FactoryFunc(func(*Engine) error { return nil }))
	}()

	<-ticking
	e.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not observe Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, deltas)
	for _, d := range deltas {
		assert.GreaterOrEqual(t, d, 0.0, "monotonic clock never yields negative delta")
	}
}

func TestEngine_RestartAfterStop(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}
	require.NoError(t, e.AddModule(rec))
	require.NoError(t, e.AddModule(&stopAfter{limit: 2}))

	noop := FactoryFunc(func(*Engine) error { return nil })
	require.NoError(t, e.Start(noop))
	assert.Equal(t, int64(2), e.Frames())

	// stopAfter only fires on an exact match, so stop the second run ourselves
	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		if arg.Frame == 4 {
			e.Stop()
		}
	})
	require.NoError(t, e.Start(noop))

	assert.Equal(t, int64(4), e.Frames(), "frame counter restarts per Start")
	assert.Equal(t, 2, rec.count("initialize"))
	assert.Equal(t, 2, rec.count("deinitialize"))
	assert.Equal(t, 6, rec.count("process"))
}

func TestEngine_ModulesPersistAcrossStarts(t *testing.T) {
	e := newTestEngine(t)
	first := &stopAfter{limit: 3}
	second := &stopAfter{limit: 10}

	require.NoError(t, e.Start(modulesFactory(first)))
	assert.Equal(t, int64(3), e.Frames())

	// first is still subscribed and stops the second run at its own limit
	first.count = 0
	require.NoError(t, e.Start(modulesFactory(second)))

	assert.Equal(t, int64(3), e.Frames())
	assert.Equal(t, 3, second.count)
	assert.Len(t, e.Modules(), 2)
}

func TestEngine_ProcessPanicStillDeinitializes(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}
	var afterPanic []int64

	require.NoError(t, e.AddModule(rec))
	e.ProcessEvent().AttachFunc(func(arg TickArg) {
		if arg.Frame == 2 {
			panic("module exploded")
		}
	})
	e.ProcessEvent().AttachFunc(func(arg TickArg) { afterPanic = append(afterPanic, arg.Frame) })

	err := e.Start(FactoryFunc(func(*Engine) error { return nil }))

	require.Error(t, err)
	assert.True(t, IsListenerPanic(err))
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, PhaseProcess, ee.Phase)
	assert.Contains(t, err.Error(), "module exploded")

	assert.Equal(t, []int64{1}, afterPanic, "listeners after the panicking one are skipped")
	assert.Equal(t, []string{"initialize", "process", "process", "deinitialize"}, rec.events)
	assert.False(t, e.Running())
}

func TestEngine_InitializePanicSkipsLoop(t *testing.T) {
	e := newTestEngine(t)
	rec := &recorder{}

	e.InitializeEvent().AttachFunc(func(InitializeArg) { panic(errors.New("init failed")) })
	require.NoError(t, e.AddModule(rec))

	err := e.Start(FactoryFunc(func(*Engine) error { return nil }))

	assert.True(t, IsListenerPanic(err))
	assert.Equal(t, []string{"deinitialize"}, rec.events)
	assert.Equal(t, int64(0), e.Frames())
}

func TestEngine_FirstListenerErrorWins(t *testing.T) {
	e := newTestEngine(t)
	e.InitializeEvent().AttachFunc(func(InitializeArg) { panic("init") })
	e.DeinitializeEvent().AttachFunc(func(DeinitializeArg) { panic("deinit") })

	err := e.Start(FactoryFunc(func(*Engine) error { return nil }))

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, PhaseInitialize, ee.Phase)
}

func TestEngine_EngineUsableAfterListenerPanic(t *testing.T) {
	e := newTestEngine(t)
	fail := true
	e.ProcessEvent().AttachFunc(func(TickArg) {
		if fail {
			fail = false
			panic("once")
		}
		e.Stop()
	})

	noop := FactoryFunc(func(*Engine) error { return nil })
	assert.True(t, IsListenerPanic(e.Start(noop)))
	assert.NoError(t, e.Start(noop))
}

func TestInstance_Singleton(t *testing.T) {
	a := Instance()
	b := Instance()
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.False(t, a.Running())
}
