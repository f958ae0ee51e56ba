package testutil

import "sync"

// SteppedClock is a deterministic time source for tick-loop tests.
//
// Every call to Time returns the current reading and then advances it by the
// next configured step. Once the steps are exhausted the last step repeats.
// With the engine's loop (one reading on loop entry, one per iteration) the
// delta observed by frame n is exactly steps[n-1].
//
// Use dyadic steps (0.5, 0.25, 0.125, ...) when exact float equality matters;
// their running sums are exactly representable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppedClock struct {
	mu    sync.Mutex
	now   float64
	steps []float64
	idx   int
	reads int
}

// NewSteppedClock creates a clock starting at 0 with the given steps.
//
// With no steps the clock never advances (every delta is 0).
func NewSteppedClock(steps ...float64) *SteppedClock {
	s := make([]float64, len(steps))
	copy(s, steps)
	return &SteppedClock{steps: s}
}

// Time returns the current reading, then advances by the next step.
func (c *SteppedClock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now
	c.reads++
	if len(c.steps) > 0 {
		c.now += c.steps[c.idx]
		if c.idx < len(c.steps)-1 {
			c.idx++
		}
	}
	return t
}

// Reads returns the number of Time calls so far.
func (c *SteppedClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// ManualClock is a time source that only moves when told to.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

// NewManualClock creates a clock reading start.
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start}
}

// Time returns the current reading without advancing.
func (c *ManualClock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d seconds. Negative d is ignored so
// the clock stays monotonic.
func (c *ManualClock) Advance(d float64) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}
