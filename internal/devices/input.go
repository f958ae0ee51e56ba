package devices

import (
	"errors"
	"fmt"
)

// Mouse event names used when device events are reported outside the
// engine.
const (
	EventMouseMoved = "mouse_moved"
	EventMouseDown  = "mouse_down"
	EventMouseUp    = "mouse_up"
)

// InputSink accepts mouse input from outside the loop. VirtualMouse
// implements it.
type InputSink interface {
	Move(x, y int)
	Press(b MouseButton)
	Release(b MouseButton)
}

var _ InputSink = (*VirtualMouse)(nil)

// Input is one mouse action from a scenario script or a stream client.
// Exactly one of Move, Press and Release is set.
type Input struct {
	Move    []int  `yaml:"move,omitempty" json:"move,omitempty"`
	Press   string `yaml:"press,omitempty" json:"press,omitempty"`
	Release string `yaml:"release,omitempty" json:"release,omitempty"`
}

// ParseButton returns the single button with the given name, as printed by
// MouseButton.String.
func ParseButton(name string) (MouseButton, error) {
	for _, bn := range buttonNames {
		if bn.name == name {
			return bn.b, nil
		}
	}
	return ButtonNone, fmt.Errorf("unknown mouse button %q", name)
}

// Validate checks that exactly one action is set and well formed.
func (in Input) Validate() error {
	set := 0
	if in.Move != nil {
		set++
		if len(in.Move) != 2 {
			return errors.New("move needs [x, y]")
		}
	}
	for _, name := range []string{in.Press, in.Release} {
		if name == "" {
			continue
		}
		set++
		if _, err := ParseButton(name); err != nil {
			return err
		}
	}
	if set != 1 {
		return errors.New("exactly one of move, press or release is required")
	}
	return nil
}

// Apply validates in and queues it on s.
func (in Input) Apply(s InputSink) error {
	if err := in.Validate(); err != nil {
		return err
	}
	switch {
	case in.Move != nil:
		s.Move(in.Move[0], in.Move[1])
	case in.Press != "":
		b, _ := ParseButton(in.Press)
		s.Press(b)
	default:
		b, _ := ParseButton(in.Release)
		s.Release(b)
	}
	return nil
}

// Report is a serializable rendering of a mouse event.
type Report struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	DX      int    `json:"dx,omitempty"`
	DY      int    `json:"dy,omitempty"`
	Button  string `json:"button,omitempty"` // button that changed
	Buttons string `json:"buttons"`          // held after the event
}

// ReportMoved renders a moved event.
func ReportMoved(arg MouseMovedEventArg) Report {
	return Report{X: arg.X, Y: arg.Y, DX: arg.DX, DY: arg.DY, Buttons: arg.Buttons.String()}
}

// ReportButton renders a button event.
func ReportButton(arg MouseButtonEventArg) Report {
	return Report{
		X:       arg.State.X,
		Y:       arg.State.Y,
		Button:  arg.Button.String(),
		Buttons: arg.State.Buttons.String(),
	}
}
