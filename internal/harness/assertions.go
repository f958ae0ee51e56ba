package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Event)
		if ev.Event == EventProcess {
			fmt.Fprintf(&buf, " frame=%d", ev.Frame)
			if ev.Delta != nil {
				fmt.Fprintf(&buf, " delta=%g", *ev.Delta)
			}
		}
		if ev.Mouse != nil {
			fmt.Fprintf(&buf, " frame=%d x=%d y=%d buttons=%s", ev.Frame, ev.Mouse.X, ev.Mouse.Y, ev.Mouse.Buttons)
		}
		if ev.Note != "" {
			fmt.Fprintf(&buf, " (%s)", ev.Note)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages. An empty slice means every assertion holds.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result.Trace, a)
	case AssertEventOrder:
		return assertEventOrder(result.Trace, a)
	case AssertDelta:
		return assertDelta(result.Trace, a)
	case AssertErrorCode:
		return assertErrorCode(result, a)
	case AssertRunning:
		return assertRunning(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEventCount checks that the event occurs exactly Count times.
func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Event == a.Event {
			count++
		}
	}

	want := 0
	if a.Count != nil {
		want = *a.Count
	}
	if count != want {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%s exactly %d time(s)", a.Event, want),
			Actual:   fmt.Sprintf("%d occurrence(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventOrder checks the trace against Events after collapsing runs of
// the same event, so [initialize, process, deinitialize] matches any number
// of frames.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	got := collapse(trace)
	if !slices.Equal(got, a.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("%v", a.Events),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// collapse returns the event names of trace with consecutive repeats removed.
func collapse(trace []TraceEvent) []string {
	out := []string{}
	for _, ev := range trace {
		if len(out) > 0 && out[len(out)-1] == ev.Event {
			continue
		}
		out = append(out, ev.Event)
	}
	return out
}

// assertDelta checks the delta carried by the process event of Frame.
func assertDelta(trace []TraceEvent, a Assertion) error {
	want := 0.0
	if a.Value != nil {
		want = *a.Value
	}

	for _, ev := range trace {
		if ev.Event != EventProcess || ev.Frame != a.Frame || ev.Delta == nil {
			continue
		}
		if math.Abs(*ev.Delta-want) > a.Tolerance {
			return &AssertionError{
				Type:     AssertDelta,
				Expected: fmt.Sprintf("frame %d delta %g (±%g)", a.Frame, want, a.Tolerance),
				Actual:   fmt.Sprintf("delta %g", *ev.Delta),
				Trace:    trace,
			}
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertDelta,
		Expected: fmt.Sprintf("frame %d delta %g", a.Frame, want),
		Actual:   fmt.Sprintf("frame %d not in trace", a.Frame),
		Trace:    trace,
	}
}

// assertErrorCode checks the code of the error returned by Start.
func assertErrorCode(result *Result, a Assertion) error {
	got := result.ErrorCode()
	if got == "" {
		got = NoError
	}
	if got != a.Code {
		actual := got
		if result.Error != nil {
			actual = result.Error.Error()
		}
		return &AssertionError{
			Type:     AssertErrorCode,
			Expected: a.Code,
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertRunning checks the running flag after Start returned.
func assertRunning(result *Result, a Assertion) error {
	if a.Running != nil && result.Running != *a.Running {
		return &AssertionError{
			Type:     AssertRunning,
			Expected: fmt.Sprintf("running=%t", *a.Running),
			Actual:   fmt.Sprintf("running=%t", result.Running),
			Trace:    result.Trace,
		}
	}
	return nil
}
