package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/tickcore/internal/config"
	"github.com/roach88/tickcore/internal/devices"
	"github.com/roach88/tickcore/internal/engine"
	"github.com/roach88/tickcore/internal/journal"
	"github.com/roach88/tickcore/internal/store"
	"github.com/roach88/tickcore/internal/testutil"
)

// MaxFrames bounds every scenario. A scenario whose modules never stop the
// engine is stopped at this frame and fails.
const MaxFrames = 10_000

// recorder is the first listener on every lifecycle channel. It appends a
// trace event per broadcast and performs the scenario's in-loop control
// actions (stop, nested start, mouse input).
type recorder struct {
	eng      *engine.Engine
	factory  *config.Factory
	scenario *Scenario
	result   *Result
	capped   bool

	frame int64
	mouse devices.InputSink
}

func (r *recorder) attach() {
	r.eng.InitializeEvent().AttachFunc(func(engine.InitializeArg) {
		r.result.addEvent(TraceEvent{Event: EventInitialize, Running: r.eng.Running()})
	})
	r.eng.ProcessEvent().AttachFunc(r.process)
	r.eng.DeinitializeEvent().AttachFunc(func(engine.DeinitializeArg) {
		r.result.addEvent(TraceEvent{Event: EventDeinitialize, Running: r.eng.Running()})
	})
}

// attachMouse records the events of m and makes it the target of the
// scenario's mouse input.
func (r *recorder) attachMouse(m *devices.VirtualMouse) {
	r.mouse = m
	m.MouseMovedEvent().AttachFunc(func(arg devices.MouseMovedEventArg) {
		r.addMouse(EventMouseMoved, devices.ReportMoved(arg))
	})
	m.MouseDownEvent().AttachFunc(func(arg devices.MouseButtonEventArg) {
		r.addMouse(EventMouseDown, devices.ReportButton(arg))
	})
	m.MouseUpEvent().AttachFunc(func(arg devices.MouseButtonEventArg) {
		r.addMouse(EventMouseUp, devices.ReportButton(arg))
	})
}

func (r *recorder) addMouse(name string, rep devices.Report) {
	r.result.addEvent(TraceEvent{
		Event:   name,
		Frame:   r.frame,
		Running: r.eng.Running(),
		Mouse:   &rep,
	})
}

// setup runs the config factory, then hooks the recorder to its mouse.
func (r *recorder) setup(e *engine.Engine) error {
	if err := r.factory.SetupEngine(e); err != nil {
		return err
	}
	if m := r.factory.Mouse(); m != nil {
		r.attachMouse(m)
	}
	return nil
}

func (r *recorder) process(arg engine.TickArg) {
	r.frame = arg.Frame
	delta := arg.DeltaTime
	idx := r.result.addEvent(TraceEvent{
		Event:   EventProcess,
		Frame:   arg.Frame,
		Delta:   &delta,
		Running: r.eng.Running(),
	})

	var notes []string
	if r.scenario.StopAtFrame == arg.Frame {
		r.eng.Stop()
		notes = append(notes, "stop requested")
	}
	if r.scenario.StartAgainAtFrame == arg.Frame {
		if err := r.eng.Start(r.factory); err != nil {
			notes = append(notes, "nested start rejected: "+string(engine.CodeOf(err)))
		} else {
			notes = append(notes, "nested start accepted")
		}
	}
	if r.mouse != nil {
		for _, in := range r.scenario.MouseInput {
			if in.Frame != arg.Frame {
				continue
			}
			if err := in.Apply(r.mouse); err != nil {
				notes = append(notes, "mouse input rejected: "+err.Error())
			}
		}
	}
	if arg.Frame >= MaxFrames {
		r.eng.Stop()
		r.capped = true
		notes = append(notes, "frame cap reached")
	}

	r.result.Trace[idx].Note = strings.Join(notes, "; ")
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store and a stepped clock,
// so traces are identical across runs.
//
// Execution flow:
//  1. Open an in-memory store for journal modules
//  2. Create an engine on a stepped clock with the recorder attached
//  3. Start it with the config factory; the recorder subscribes to the
//     virtual mouse, if any, once setup has built it
//  4. Evaluate assertions against the trace and the Start outcome
//
// A non-nil error means the harness itself could not run; assertion
// failures are reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewSteppedClock(scenario.ClockSteps...)
	eng := engine.New(engine.WithClock(clock), engine.WithLogger(logger))

	cfg := scenario.Config
	factory := config.NewFactory(&cfg,
		config.WithStore(st),
		config.WithLogger(logger),
		config.WithIDGenerator(journal.NewFixedGenerator(scenario.Name+"-run")),
	)

	result := NewResult()
	rec := &recorder{
		eng:      eng,
		factory:  factory,
		scenario: scenario,
		result:   result,
	}
	rec.attach()

	result.Error = eng.Start(engine.FactoryFunc(rec.setup))
	result.Running = eng.Running()
	result.Frames = eng.Frames()

	if rec.capped {
		result.AddError(fmt.Sprintf("scenario did not stop within %d frames", MaxFrames))
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}
