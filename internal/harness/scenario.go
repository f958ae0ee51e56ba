package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tickcore/internal/config"
	"github.com/roach88/tickcore/internal/devices"
)

// Scenario defines a lifecycle test scenario.
// A scenario assembles an engine from an inline config, drives it with a
// stepped clock, and asserts on the recorded lifecycle trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the assembly the factory builds. The clock section is
	// ignored; scenarios always run on ClockSteps.
	Config config.Config `yaml:"config"`

	// ClockSteps are the clock increments per reading. The delta of frame n
	// is ClockSteps[n-1]; the last step repeats.
	ClockSteps []float64 `yaml:"clock_steps"`

	// StopAtFrame makes the recorder call Stop from inside the process
	// listener of that frame. Zero disables it.
	StopAtFrame int64 `yaml:"stop_at_frame,omitempty"`

	// StartAgainAtFrame makes the recorder call Start from inside the
	// process listener of that frame. Zero disables it.
	StartAgainAtFrame int64 `yaml:"start_again_at_frame,omitempty"`

	// MouseInput scripts input for the assembly's virtual mouse. Each entry
	// is queued from the recorder's process listener of its frame, so the
	// resulting mouse events appear in that same frame.
	MouseInput []MouseInput `yaml:"mouse_input,omitempty"`

	// Assertions validate the trace and the outcome of Start.
	// Supported types: event_count, event_order, delta, error_code, running
	Assertions []Assertion `yaml:"assertions"`
}

// MouseInput is one scripted mouse action, e.g.
//
//	{frame: 2, move: [10, 20]}
//	{frame: 3, press: left}
type MouseInput struct {
	Frame         int64 `yaml:"frame"`
	devices.Input `yaml:",inline"`
}

// Assertion validates the trace or the outcome of Start.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_count": Event occurs exactly Count times
	// - "event_order": the trace, with repeats collapsed, equals Events
	// - "delta": the process event of Frame carries delta Value
	// - "error_code": Start returned an error with Code ("none" for success)
	// - "running": engine.Running() after Start equals Running
	Type string `yaml:"type"`

	// Event is the lifecycle event name (used by event_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (used by event_count).
	Count *int `yaml:"count,omitempty"`

	// Events is the expected collapsed event order (used by event_order).
	Events []string `yaml:"events,omitempty"`

	// Frame and Value are the frame number and its expected delta (used by
	// delta). Tolerance is the allowed absolute difference, default 0.
	Frame     int64    `yaml:"frame,omitempty"`
	Value     *float64 `yaml:"value,omitempty"`
	Tolerance float64  `yaml:"tolerance,omitempty"`

	// Code is the expected engine error code (used by error_code).
	Code string `yaml:"code,omitempty"`

	// Running is the expected final running flag (used by running).
	Running *bool `yaml:"running,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertDelta      = "delta"
	AssertErrorCode  = "error_code"
	AssertRunning    = "running"
)

// NoError is the error_code value asserting that Start succeeded.
const NoError = "none"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Config.Normalize()

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := config.Validate(&s.Config); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, step := range s.ClockSteps {
		if step < 0 {
			return fmt.Errorf("clock_steps[%d]: step must be non-negative", i)
		}
	}

	if s.StopAtFrame < 0 {
		return fmt.Errorf("stop_at_frame must be non-negative")
	}
	if s.StartAgainAtFrame < 0 {
		return fmt.Errorf("start_again_at_frame must be non-negative")
	}

	if len(s.MouseInput) > 0 && !s.Config.HasModule(config.ModuleVirtualMouse) {
		return fmt.Errorf("mouse_input requires a %s module", config.ModuleVirtualMouse)
	}
	for i, in := range s.MouseInput {
		if in.Frame < 1 {
			return fmt.Errorf("mouse_input[%d]: frame >= 1 is required", i)
		}
		if err := in.Validate(); err != nil {
			return fmt.Errorf("mouse_input[%d]: %w", i, err)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventCount:
		if !isEventName(a.Event) {
			return fmt.Errorf("assertions[%d]: unknown event %q for event_count", index, a.Event)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
		for _, ev := range a.Events {
			if !isEventName(ev) {
				return fmt.Errorf("assertions[%d]: unknown event %q in event_order", index, ev)
			}
		}
	case AssertDelta:
		if a.Frame < 1 {
			return fmt.Errorf("assertions[%d]: frame >= 1 is required for delta", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for delta", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code (use %q for success)", index, NoError)
		}
	case AssertRunning:
		if a.Running == nil {
			return fmt.Errorf("assertions[%d]: running is required for running", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func isEventName(s string) bool {
	switch s {
	case EventInitialize, EventProcess, EventDeinitialize,
		EventMouseMoved, EventMouseDown, EventMouseUp:
		return true
	}
	return false
}
