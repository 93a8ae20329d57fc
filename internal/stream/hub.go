package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Action is the kind of change that happened to a row.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes one row change. Clients apply it to their local mirror of
// the named table instead of re-fetching the whole table.
type Event struct {
	Table  string `json:"table"`
	Action Action `json:"action"`
	ID     string `json:"id"`
}

type subscriber struct {
	userID uuid.UUID
	ch     chan Event
}

// Hub fan-outs change events to the subscribers they are addressed to.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe registers a user's connection and returns its event channel plus
// an unsubscribe function. The caller must call unsubscribe when the
// connection ends; it removes the registration, closes the channel, and is
// safe to call more than once.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{userID: userID, ch: ch}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber in the audience. An empty
// audience broadcasts to all connected users (profile directory changes).
func (h *Hub) Publish(evt Event, audience ...uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if len(audience) > 0 && !contains(audience, sub.userID) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
