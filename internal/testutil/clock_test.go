package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSteppedClock_NoSteps(t *testing.T) {
	c := NewSteppedClock()
	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, 2, c.Reads())
}

func TestSteppedClock_AdvancesAfterRead(t *testing.T) {
	c := NewSteppedClock(0.5, 0.25, 1)

	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, 0.5, c.Time())
	assert.Equal(t, 0.75, c.Time())
	assert.Equal(t, 1.75, c.Time())
	// last step repeats
	assert.Equal(t, 2.75, c.Time())
	assert.Equal(t, 3.75, c.Time())
}

func TestSteppedClock_StepsAreCopied(t *testing.T) {
	steps := []float64{1, 1}
	c := NewSteppedClock(steps...)
	steps[0] = 100

	c.Time()
	assert.Equal(t, 1.0, c.Time())
}

func TestSteppedClock_Monotonic(t *testing.T) {
	c := NewSteppedClock(0.125, 0, 0.5)
	prev := c.Time()
	for i := 0; i < 20; i++ {
		now := c.Time()
		assert.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestSteppedClock_ThreadSafe(t *testing.T) {
	c := NewSteppedClock(1)
	const goroutines = 20
	const reads = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < reads; j++ {
				c.Time()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*reads, c.Reads())
	assert.Equal(t, float64(goroutines*reads), c.Time())
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	assert.Equal(t, 10.0, c.Time())
	assert.Equal(t, 10.0, c.Time(), "reading must not advance")

	c.Advance(0.5)
	assert.Equal(t, 10.5, c.Time())

	c.Advance(-3)
	assert.Equal(t, 10.5, c.Time(), "negative advance is ignored")
}
