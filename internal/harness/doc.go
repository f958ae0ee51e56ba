// Package harness runs lifecycle scenarios against the engine.
//
// A scenario assembles an engine from an inline config, runs it on a stepped
// clock, records every lifecycle broadcast, and validates the recorded trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: stop_after_five
//	description: "Frame limit stops the loop after five ticks"
//	config:
//	  name: five
//	  modules:
//	    - {type: frame_limit, frames: 5}
//	clock_steps: [0.5, 0.25]
//	assertions:
//	  - {type: event_count, event: process, count: 5}
//	  - {type: event_order, events: [initialize, process, deinitialize]}
//	  - {type: delta, frame: 2, value: 0.25}
//	  - {type: error_code, code: none}
//	  - {type: running, running: false}
//
// stop_at_frame and start_again_at_frame make the recorder call Stop or a
// nested Start from inside the process listener of that frame.
//
// # Assertion Types
//
//   - event_count: an event occurs exactly N times
//   - event_order: the trace with repeats collapsed equals the given list
//   - delta: the process event of a frame carries the given delta
//   - error_code: Start returned an error with the given code, or "none"
//   - running: the running flag after Start returned
//
// # Deterministic Testing
//
// The harness uses:
//   - testutil.SteppedClock fed from clock_steps (frame n sees step n)
//   - Fixed journal run IDs
//   - In-memory SQLite database (isolated per scenario)
//
// This makes traces byte-identical across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/stop.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
