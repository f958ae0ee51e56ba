// Package devices defines input device capabilities for engine modules.
//
// A device is an ordinary module that also implements a capability
// interface such as Mouse. Consumers discover devices by querying the
// engine's module list for the capability (FindMouse) rather than by
// module type.
package devices

import (
	"github.com/roach88/tickcore/internal/engine"
	"github.com/roach88/tickcore/internal/event"
)

// MouseButton is a bit set of mouse buttons.
type MouseButton uint8

const (
	ButtonNone      MouseButton = 0
	ButtonLeft      MouseButton = 1 << 0
	ButtonMiddle    MouseButton = 1 << 1
	ButtonRight     MouseButton = 1 << 2
	ButtonWheelUp   MouseButton = 1 << 3
	ButtonWheelDown MouseButton = 1 << 4
)

var buttonNames = []struct {
	b    MouseButton
	name string
}{
	{ButtonLeft, "left"},
	{ButtonMiddle, "middle"},
	{ButtonRight, "right"},
	{ButtonWheelUp, "wheel-up"},
	{ButtonWheelDown, "wheel-down"},
}

// String returns the pressed buttons joined by "+", or "none".
func (b MouseButton) String() string {
	if b == ButtonNone {
		return "none"
	}
	s := ""
	for _, bn := range buttonNames {
		if b&bn.b == 0 {
			continue
		}
		if s != "" {
			s += "+"
		}
		s += bn.name
	}
	if s == "" {
		return "unknown"
	}
	return s
}

// MouseState is a snapshot of cursor position and held buttons.
type MouseState struct {
	X       int
	Y       int
	Buttons MouseButton
}

// MouseMovedEventArg is sent to MouseMovedEvent listeners.
type MouseMovedEventArg struct {
	X       int // absolute position
	Y       int
	DX      int // movement since the previous position
	DY      int
	Buttons MouseButton
}

// MouseButtonEventArg is sent to MouseUpEvent and MouseDownEvent listeners.
type MouseButtonEventArg struct {
	State  MouseState  // state after the change
	Button MouseButton // button that changed
}

// Mouse is the capability of a module that acts as a pointing device.
type Mouse interface {
	HideCursor()
	ShowCursor()
	// SetCursor moves the cursor without emitting a moved event.
	SetCursor(x, y int)
	State() MouseState
	CursorVisible() bool

	MouseUpEvent() *event.Event[MouseButtonEventArg]
	MouseDownEvent() *event.Event[MouseButtonEventArg]
	MouseMovedEvent() *event.Event[MouseMovedEventArg]
}

// IsPressed reports whether any of the buttons in b is held on m.
func IsPressed(m Mouse, b MouseButton) bool {
	return m.State().Buttons&b != 0
}

// FindMouse returns the first module added to e that has the Mouse
// capability.
func FindMouse(e *engine.Engine) (Mouse, bool) {
	for _, mod := range e.Modules() {
		if m, ok := mod.(Mouse); ok {
			return m, true
		}
	}
	return nil, false
}
