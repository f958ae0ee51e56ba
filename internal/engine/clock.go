package engine

import (
	"sync"
	"time"
)

// Clock supplies the time source for delta-time measurement.
//
// Time returns elapsed seconds since an arbitrary epoch. Implementations must
// be monotonic: successive calls never return a smaller value. The engine only
// ever subtracts two readings, so the epoch itself is irrelevant.
type Clock interface {
	Time() float64
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() float64

// Time calls f().
func (f ClockFunc) Time() float64 {
	return f()
}

// MonotonicClock reads Go's monotonic clock.
//
// time.Since uses the monotonic reading embedded in the start time, so wall
// clock adjustments (NTP, manual changes) never produce negative deltas.
//
// Thread-safety: MonotonicClock is immutable and safe for concurrent use.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a clock whose epoch is the moment of creation.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Time returns seconds elapsed since the clock was created.
func (c *MonotonicClock) Time() float64 {
	return time.Since(c.start).Seconds()
}

// FixedStepClock advances by a constant step on every reading, so every
// tick observes a delta of exactly Step. Used for reproducible runs.
//
// Thread-safety: FixedStepClock is safe for concurrent use via internal mutex.
type FixedStepClock struct {
	mu   sync.Mutex
	step float64
	now  float64
}

// NewFixedStepClock creates a clock starting at 0. A negative step is
// treated as 0 so the clock stays monotonic.
func NewFixedStepClock(step float64) *FixedStepClock {
	if step < 0 {
		step = 0
	}
	return &FixedStepClock{step: step}
}

// Time returns the current reading, then advances by the step.
func (c *FixedStepClock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now
	c.now += c.step
	return t
}
