package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcore/internal/engine"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Event: EventInitialize, Running: true},
		{Seq: 2, Event: EventProcess, Frame: 1, Delta: floatPtr(0.5), Running: true},
		{Seq: 3, Event: EventProcess, Frame: 2, Delta: floatPtr(0.25), Running: true, Note: "stop requested"},
		{Seq: 4, Event: EventDeinitialize},
	}
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertEventCount(trace, Assertion{Event: EventProcess, Count: intPtr(2)}))
	assert.NoError(t, assertEventCount(trace, Assertion{Event: EventInitialize, Count: intPtr(1)}))

	err := assertEventCount(trace, Assertion{Event: EventProcess, Count: intPtr(5)})
	var aerr *AssertionError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "2 occurrence(s)", aerr.Actual)
}

func TestAssertEventOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertEventOrder(trace, Assertion{Events: []string{EventInitialize, EventProcess, EventDeinitialize}}))
	assert.Error(t, assertEventOrder(trace, Assertion{Events: []string{EventInitialize, EventDeinitialize}}))
	assert.Error(t, assertEventOrder(nil, Assertion{Events: []string{EventInitialize}}))
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, []string{}, collapse(nil))
	assert.Equal(t, []string{EventInitialize, EventProcess, EventDeinitialize}, collapse(sampleTrace()))
}

func TestAssertDelta(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertDelta(trace, Assertion{Frame: 2, Value: floatPtr(0.25)}))
	assert.NoError(t, assertDelta(trace, Assertion{Frame: 2, Value: floatPtr(0.3), Tolerance: 0.1}))
	assert.Error(t, assertDelta(trace, Assertion{Frame: 2, Value: floatPtr(0.3)}))
	assert.Error(t, assertDelta(trace, Assertion{Frame: 3, Value: floatPtr(0.25)}))
}

func TestAssertErrorCode(t *testing.T) {
	ok := &Result{}
	assert.NoError(t, assertErrorCode(ok, Assertion{Code: NoError}))
	assert.Error(t, assertErrorCode(ok, Assertion{Code: "SETUP_FAILED"}))

	failed := &Result{Error: engine.NewSetupError(errors.New("no window"))}
	assert.NoError(t, assertErrorCode(failed, Assertion{Code: "SETUP_FAILED"}))

	err := assertErrorCode(failed, Assertion{Code: NoError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no window")
}

func TestAssertRunning(t *testing.T) {
	r := &Result{Running: false}
	assert.NoError(t, assertRunning(r, Assertion{Running: boolPtr(false)}))
	assert.Error(t, assertRunning(r, Assertion{Running: boolPtr(true)}))
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertEventCount,
		Expected: "x",
		Actual:   "y",
		Trace:    sampleTrace(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: event_count")
	assert.Contains(t, msg, "[2] process frame=1 delta=0.5")
	assert.Contains(t, msg, "[3] process frame=2 delta=0.25 (stop requested)")
	assert.Contains(t, msg, "[4] deinitialize")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "bogus"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "bogus")
}
