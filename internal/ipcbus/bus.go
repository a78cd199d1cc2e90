// Package ipcbus models the object-bus sink that spec.md §1 lists as an
// out-of-scope external collaborator: "the IPC object bus used to export
// management objects to other processes (treated as a sink with
// emit_added, emit_removed, property-change events)". The registry core
// only ever needs to call three operations on it; this package supplies
// that narrow contract plus one concrete implementation broadcasting over
// WebSocket, adapted from this codebase's monitoring hub — no D-Bus
// binding appears anywhere in the reference set this project draws from,
// so the bus is approximated over a transport that does.
package ipcbus

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType identifies the kind of object-bus notification.
type EventType string

const (
	EventAdded            EventType = "object_added"
	EventRemoved          EventType = "object_removed"
	EventPropertyChanged  EventType = "property_changed"
)

// ObjectEvent is one notification published to the bus.
type ObjectEvent struct {
	Type       EventType              `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	Path       string                 `json:"path"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Sink is the contract the registry core invokes. Implementations must
// not block the caller for longer than it takes to enqueue the event.
type Sink interface {
	EmitAdded(path string, properties map[string]interface{})
	EmitRemoved(path string)
	EmitPropertyChanged(path, property string, value interface{})
}

// Hub is a Sink that broadcasts object-bus events to every connected
// WebSocket client. Exactly one Hub exists per daemon; the registry is
// its only producer.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan ObjectEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

// NewHub creates a Hub. Call Run in its own goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan ObjectEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run is the Hub's single-threaded event loop. It owns the client map —
// nothing else may touch it.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("[ipcbus] client connected, total=%d", len(h.clients))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			log.Printf("[ipcbus] client disconnected, total=%d", len(h.clients))

		case event := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					log.Printf("[ipcbus] write error: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a client connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister removes a client connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

func (h *Hub) publish(event ObjectEvent) {
	event.Timestamp = time.Now()
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[ipcbus] broadcast channel full, dropping %s %s", event.Type, event.Path)
	}
}

// EmitAdded notifies subscribers that a management object now exists.
func (h *Hub) EmitAdded(path string, properties map[string]interface{}) {
	h.publish(ObjectEvent{Type: EventAdded, Path: path, Properties: properties})
}

// EmitRemoved notifies subscribers that a management object was destroyed.
func (h *Hub) EmitRemoved(path string) {
	h.publish(ObjectEvent{Type: EventRemoved, Path: path})
}

// EmitPropertyChanged notifies subscribers of a single property update.
func (h *Hub) EmitPropertyChanged(path, property string, value interface{}) {
	h.publish(ObjectEvent{
		Type:       EventPropertyChanged,
		Path:       path,
		Properties: map[string]interface{}{property: value},
	})
}

// NopSink discards every event. Useful in tests that don't care about
// the bus side effect.
type NopSink struct{}

func (NopSink) EmitAdded(string, map[string]interface{}) {}
func (NopSink) EmitRemoved(string)                        {}
func (NopSink) EmitPropertyChanged(string, string, interface{}) {}
