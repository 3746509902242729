package sse

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one entry on the version event stream.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflow_id"`
	Version    string    `json:"version,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent builds a stream event with a fresh id and timestamp.
func NewEvent(eventType, workflowID, ver, branchName, actor string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		WorkflowID: workflowID,
		Version:    ver,
		Branch:     branchName,
		Actor:      actor,
		At:         time.Now().UTC(),
	}
}

// Client is one SSE subscriber.
type Client struct {
	ID     string
	Events chan Event
}

// Hub fans version events out to SSE clients. Sends never block: a
// client whose channel is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Subscribe registers a client with a buffered event channel.
func (h *Hub) Subscribe(clientID string) *Client {
	c := &Client{ID: clientID, Events: make(chan Event, 32)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientID] = c
	return c
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
	}
}

// Broadcast delivers an event to every subscriber.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.Events <- event:
		default:
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
