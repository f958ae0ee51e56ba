// Package stream broadcasts engine lifecycle events to WebSocket clients.
//
// A Hub is both an engine module and an http.Handler. Mounted on a server,
// it upgrades each request to a WebSocket and forwards every lifecycle
// broadcast as a JSON Message. Delivery never blocks the tick loop: each
// client has a bounded queue, and a client whose queue is full is dropped.
//
// With a mouse attached, mouse events are forwarded too, and clients may
// drive the mouse by sending devices.Input documents.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/roach88/tickcore/internal/devices"
	"github.com/roach88/tickcore/internal/engine"
)

// Event names carried in Message.Event.
const (
	EventInitialize   = "initialize"
	EventProcess      = "process"
	EventDeinitialize = "deinitialize"

	EventMouseMoved = devices.EventMouseMoved
	EventMouseDown  = devices.EventMouseDown
	EventMouseUp    = devices.EventMouseUp
)

// Message is the JSON document sent to clients for each forwarded event.
type Message struct {
	Event  string   `json:"event"`
	Frame  int64    `json:"frame,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
	Frames int64    `json:"frames,omitempty"` // set on deinitialize

	Mouse *devices.Report `json:"mouse,omitempty"` // set on mouse events
}

// Hub fans lifecycle events out to connected clients.
type Hub struct {
	logger   *slog.Logger
	every    int64
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	input   devices.InputSink

	frames  atomic.Int64
	dropped atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithEvery forwards only every nth process event. Values below 1 are
// ignored. Initialize and deinitialize are always forwarded.
func WithEvery(n int64) Option {
	return func(h *Hub) {
		if n >= 1 {
			h.every = n
		}
	}
}

// NewHub creates a hub with no clients.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:  slog.Default(),
		every:   1,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logger.Debug("stream upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("stream client connected", "remote", r.RemoteAddr, "clients", n)

	go c.writePump()
	go c.readPump()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of clients dropped for falling behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// AttachMouse forwards the events of m to clients. If m also implements
// devices.InputSink, client messages such as {"move":[10,20]} or
// {"press":"left"} are queued on it and take effect on the next tick.
func (h *Hub) AttachMouse(m devices.Mouse) {
	m.MouseMovedEvent().AttachFunc(func(arg devices.MouseMovedEventArg) {
		rep := devices.ReportMoved(arg)
		h.publish(Message{Event: EventMouseMoved, Mouse: &rep})
	})
	m.MouseDownEvent().AttachFunc(func(arg devices.MouseButtonEventArg) {
		rep := devices.ReportButton(arg)
		h.publish(Message{Event: EventMouseDown, Mouse: &rep})
	})
	m.MouseUpEvent().AttachFunc(func(arg devices.MouseButtonEventArg) {
		rep := devices.ReportButton(arg)
		h.publish(Message{Event: EventMouseUp, Mouse: &rep})
	})

	if sink, ok := m.(devices.InputSink); ok {
		h.mu.Lock()
		h.input = sink
		h.mu.Unlock()
	}
}

// handleInput applies one client message to the attached mouse.
func (h *Hub) handleInput(data []byte) {
	h.mu.Lock()
	sink := h.input
	h.mu.Unlock()

	if sink == nil {
		h.logger.Debug("stream input ignored, no mouse attached")
		return
	}

	var in devices.Input
	if err := json.Unmarshal(data, &in); err != nil {
		h.logger.Debug("stream input is not valid JSON", "error", err)
		return
	}
	if err := in.Apply(sink); err != nil {
		h.logger.Debug("stream input rejected", "error", err)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Initialize() {
	h.frames.Store(0)
	h.publish(Message{Event: EventInitialize})
}

func (h *Hub) Process(arg engine.TickArg) {
	h.frames.Store(arg.Frame)
	if arg.Frame%h.every != 0 {
		return
	}
	delta := arg.DeltaTime
	h.publish(Message{Event: EventProcess, Frame: arg.Frame, Delta: &delta})
}

func (h *Hub) Deinitialize() {
	h.publish(Message{Event: EventDeinitialize, Frames: h.frames.Load()})
}

// publish queues msg on every client without blocking.
func (h *Hub) publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode stream message", "event", msg.Event, "error", err)
		return
	}

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			delete(h.clients, c)
			close(c.send)
			h.dropped.Add(1)
			h.logger.Warn("dropping slow stream client", "event", msg.Event)
		}
	}
}

// unregister removes c if it is still subscribed.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
