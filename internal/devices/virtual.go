package devices

import (
	"sync"

	"github.com/roach88/tickcore/internal/engine"
	"github.com/roach88/tickcore/internal/event"
)

type inputKind int

const (
	inputMove inputKind = iota
	inputPress
	inputRelease
)

type input struct {
	kind   inputKind
	x, y   int
	button MouseButton
}

// VirtualMouse is a Mouse driven by injected input.
//
// Move, Press and Release may be called from any goroutine. Input is queued
// and dispatched as events on the next process tick, so listeners always run
// on the loop goroutine. Input still queued at deinitialize is dropped.
//
// The cursor is clamped to [0, width-1] x [0, height-1]. A width or height
// of 0 leaves that axis unbounded above.
type VirtualMouse struct {
	width, height int

	mu      sync.Mutex
	state   MouseState
	visible bool
	pending []input

	up    event.Event[MouseButtonEventArg]
	down  event.Event[MouseButtonEventArg]
	moved event.Event[MouseMovedEventArg]
}

// NewVirtualMouse creates a visible virtual mouse at the origin.
func NewVirtualMouse(width, height int) *VirtualMouse {
	return &VirtualMouse{width: width, height: height, visible: true}
}

var _ Mouse = (*VirtualMouse)(nil)

func (m *VirtualMouse) HideCursor() {
	m.mu.Lock()
	m.visible = false
	m.mu.Unlock()
}

func (m *VirtualMouse) ShowCursor() {
	m.mu.Lock()
	m.visible = true
	m.mu.Unlock()
}

func (m *VirtualMouse) CursorVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

func (m *VirtualMouse) SetCursor(x, y int) {
	m.mu.Lock()
	m.state.X, m.state.Y = m.clamp(x, y)
	m.mu.Unlock()
}

func (m *VirtualMouse) State() MouseState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *VirtualMouse) MouseUpEvent() *event.Event[MouseButtonEventArg]   { return &m.up }
func (m *VirtualMouse) MouseDownEvent() *event.Event[MouseButtonEventArg] { return &m.down }
func (m *VirtualMouse) MouseMovedEvent() *event.Event[MouseMovedEventArg] { return &m.moved }

// Move queues a move to the absolute position (x, y).
func (m *VirtualMouse) Move(x, y int) {
	m.enqueue(input{kind: inputMove, x: x, y: y})
}

// Press queues a button press.
func (m *VirtualMouse) Press(b MouseButton) {
	m.enqueue(input{kind: inputPress, button: b})
}

// Release queues a button release.
func (m *VirtualMouse) Release(b MouseButton) {
	m.enqueue(input{kind: inputRelease, button: b})
}

// Pending returns the number of queued inputs.
func (m *VirtualMouse) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *VirtualMouse) enqueue(in input) {
	m.mu.Lock()
	m.pending = append(m.pending, in)
	m.mu.Unlock()
}

// Process dispatches the input queued since the previous tick, in order.
func (m *VirtualMouse) Process(engine.TickArg) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, in := range pending {
		m.apply(in)
	}
}

// Deinitialize drops input that never reached a tick.
func (m *VirtualMouse) Deinitialize() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}

// apply updates state under the lock and notifies listeners after releasing
// it, so listeners may call back into the mouse.
func (m *VirtualMouse) apply(in input) {
	m.mu.Lock()
	switch in.kind {
	case inputMove:
		x, y := m.clamp(in.x, in.y)
		arg := MouseMovedEventArg{
			X:       x,
			Y:       y,
			DX:      x - m.state.X,
			DY:      y - m.state.Y,
			Buttons: m.state.Buttons,
		}
		m.state.X, m.state.Y = x, y
		m.mu.Unlock()
		if arg.DX != 0 || arg.DY != 0 {
			m.moved.Notify(arg)
		}

	case inputPress:
		changed := in.button &^ m.state.Buttons
		m.state.Buttons |= in.button
		arg := MouseButtonEventArg{State: m.state, Button: changed}
		m.mu.Unlock()
		if changed != ButtonNone {
			m.down.Notify(arg)
		}

	case inputRelease:
		changed := in.button & m.state.Buttons
		m.state.Buttons &^= in.button
		arg := MouseButtonEventArg{State: m.state, Button: changed}
		m.mu.Unlock()
		if changed != ButtonNone {
			m.up.Notify(arg)
		}

	default:
		m.mu.Unlock()
	}
}

// clamp limits (x, y) to the configured bounds.
func (m *VirtualMouse) clamp(x, y int) (int, int) {
	return clampAxis(x, m.width), clampAxis(y, m.height)
}

func clampAxis(v, size int) int {
	if v < 0 {
		return 0
	}
	if size > 0 && v > size-1 {
		return size - 1
	}
	return v
}
