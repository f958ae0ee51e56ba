package harness

import (
	"github.com/roach88/tickcore/internal/devices"
	"github.com/roach88/tickcore/internal/engine"
)

// Lifecycle event names recorded in a trace.
const (
	EventInitialize   = string(engine.PhaseInitialize)
	EventProcess      = string(engine.PhaseProcess)
	EventDeinitialize = string(engine.PhaseDeinitialize)
)

// Mouse event names recorded when the assembly has a virtual mouse.
const (
	EventMouseMoved = devices.EventMouseMoved
	EventMouseDown  = devices.EventMouseDown
	EventMouseUp    = devices.EventMouseUp
)

// TraceEvent is one lifecycle broadcast as observed by the harness recorder.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Event string `json:"event"` // lifecycle or mouse event name

	// Frame is set for process and mouse events, Delta for process events
	// only.
	Frame int64    `json:"frame,omitempty"`
	Delta *float64 `json:"delta,omitempty"`

	// Running is engine.Running() as seen from inside the listener.
	Running bool `json:"running"`

	// Note records a control action the recorder took during this event,
	// such as a stop request or a rejected nested start.
	Note string `json:"note,omitempty"`

	// Mouse is set for mouse events.
	Mouse *devices.Report `json:"mouse,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every lifecycle broadcast in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Error is the error returned by Start, or nil.
	Error error `json:"-"`

	// Running is engine.Running() after Start returned.
	Running bool `json:"running"`

	// Frames is the number of process broadcasts.
	Frames int64 `json:"frames"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ErrorCode returns the engine error code of r.Error, or "" if Start
// succeeded.
func (r *Result) ErrorCode() string {
	return string(engine.CodeOf(r.Error))
}

// addEvent appends an event with the next sequence number and returns its
// index in the trace.
func (r *Result) addEvent(ev TraceEvent) int {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
	return len(r.Trace) - 1
}
