// Package engine implements the tickcore module coordinator.
//
// The engine is a container for modules. It does not know what the modules
// are; they participate only by subscribing to three lifecycle broadcasts:
//
//	initialize   - once per Start, before the first tick
//	process      - once per loop iteration, carrying a TickArg
//	deinitialize - once per Start, after the loop exits
//
// ARCHITECTURE:
//
// Blocking Start:
// Start runs setup, initialize, the tick loop and deinitialize on the calling
// goroutine and returns only when the engine has fully stopped. Broadcasts
// are synchronous function-call fan-out: a slow listener stalls the frame and
// inflates the next frame's delta.
//
// Start Sequence:
// 1. Reject the call if the engine is running (warning, no side effects)
// 2. Factory.SetupEngine registers modules; the factory is then closed
// 3. running = true, broadcast initialize
// 4. Loop: read clock, broadcast TickArg{delta}, repeat while running
// 5. Broadcast deinitialize
//
// Stop:
// Stop clears an atomic flag read at the top of each iteration. It never
// re-enters the loop, so it is safe from inside a process listener and from
// other goroutines (signal handlers, tests).
//
// Timing:
// Delta time is the difference between successive clock readings taken at
// iteration start. There is no fixed timestep, frame cap or clamping.
package engine
