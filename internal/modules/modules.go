// Package modules provides the stock engine modules the assembly factory can
// build: frame and time limits, and frame statistics.
//
// Each module participates purely through the engine's capability
// interfaces (Registrar, Initializer, Processor, Deinitializer).
package modules

import (
	"math"
	"sync"

	"github.com/roach88/tickcore/internal/engine"
)

// FrameLimit stops the engine once it has processed Limit ticks.
//
// The counter resets on initialize, so the limit applies per Start.
type FrameLimit struct {
	Limit int64

	engine *engine.Engine
	count  int64
}

// NewFrameLimit creates a module that stops the engine after limit frames.
func NewFrameLimit(limit int64) *FrameLimit {
	return &FrameLimit{Limit: limit}
}

func (m *FrameLimit) Register(e *engine.Engine) { m.engine = e }

func (m *FrameLimit) Initialize() { m.count = 0 }

func (m *FrameLimit) Process(engine.TickArg) {
	m.count++
	if m.count >= m.Limit {
		m.engine.Stop()
	}
}

// Count returns the ticks seen since the last initialize.
func (m *FrameLimit) Count() int64 {
	return m.count
}

// Deadline stops the engine once the accumulated delta time reaches Seconds.
//
// Deadline measures engine time (the sum of tick deltas), not wall time, so
// it is deterministic under a test clock.
type Deadline struct {
	Seconds float64

	engine  *engine.Engine
	elapsed float64
}

// NewDeadline creates a module that stops the engine after seconds of engine time.
func NewDeadline(seconds float64) *Deadline {
	return &Deadline{Seconds: seconds}
}

func (m *Deadline) Register(e *engine.Engine) { m.engine = e }

func (m *Deadline) Initialize() { m.elapsed = 0 }

func (m *Deadline) Process(arg engine.TickArg) {
	m.elapsed += arg.DeltaTime
	if m.elapsed >= m.Seconds {
		m.engine.Stop()
	}
}

// Elapsed returns the engine time accumulated since the last initialize.
func (m *Deadline) Elapsed() float64 {
	return m.elapsed
}

// StatsSnapshot summarizes the ticks of one run.
type StatsSnapshot struct {
	Frames   int64   `json:"frames"`
	Total    float64 `json:"total_seconds"`
	MinDelta float64 `json:"min_delta"`
	MaxDelta float64 `json:"max_delta"`
	Mean     float64 `json:"mean_delta"`
}

// Stats collects frame-time statistics.
//
// Snapshot may be called from another goroutine while the engine runs.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

// NewStats creates an empty statistics module.
func NewStats() *Stats {
	return &Stats{}
}

func (m *Stats) Initialize() {
	m.mu.Lock()
	m.snap = StatsSnapshot{}
	m.mu.Unlock()
}

func (m *Stats) Process(arg engine.TickArg) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := arg.DeltaTime
	if m.snap.Frames == 0 {
		m.snap.MinDelta, m.snap.MaxDelta = d, d
	} else {
		m.snap.MinDelta = math.Min(m.snap.MinDelta, d)
		m.snap.MaxDelta = math.Max(m.snap.MaxDelta, d)
	}
	m.snap.Frames++
	m.snap.Total += d
	m.snap.Mean = m.snap.Total / float64(m.snap.Frames)
}

// Snapshot returns the statistics gathered so far.
func (m *Stats) Snapshot() StatsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}
