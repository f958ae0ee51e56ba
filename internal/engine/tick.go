package engine

// TickArg is the payload of one process broadcast.
//
// A fresh value is built for every iteration and passed by value, so
// listeners cannot alter what their siblings observe.
type TickArg struct {
	// DeltaTime is the elapsed clock time, in seconds, between the start of
	// this iteration and the start of the previous one. For the first
	// iteration it is measured from loop entry.
	DeltaTime float64

	// Frame is the 1-based iteration number within the current Start call.
	Frame int64
}

// InitializeArg is the marker payload of the initialize broadcast.
type InitializeArg struct{}

// DeinitializeArg is the marker payload of the deinitialize broadcast.
type DeinitializeArg struct{}

// startGameLoop runs process broadcasts until the running flag clears.
//
// Delta time is wall-clock elapsed time between successive iteration starts.
// There is no sleep, cap or smoothing: the loop runs as fast as listeners let
// it, and spikes pass through unfiltered. t0 is read here rather than in
// Start so that factory setup and initialization are excluded from the first
// frame's delta.
func (e *Engine) startGameLoop() {
	t0 := e.clock.Time()

	for e.running.Load() {
		t1 := e.clock.Time()
		e.processModules(t1 - t0)
		t0 = t1
	}
}

// processModules broadcasts one tick.
func (e *Engine) processModules(delta float64) {
	frame := e.frames.Add(1)
	e.processEvent.Notify(TickArg{DeltaTime: delta, Frame: frame})
}
