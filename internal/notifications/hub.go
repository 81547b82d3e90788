package notifications

import (
	"context"
	"sync"
)

const defaultHubBuffer = 16

// Event is a recorded notification delivered to live subscribers.
type Event struct {
	UserID string
	Record Record
}

// Hub fans recorded notifications out to in-process subscribers, keyed by user.
// Slow subscribers lose events instead of blocking publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]chan Event
	nextID      int64
	bufferSize  int
	watchers    sync.WaitGroup
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[int64]chan Event),
		bufferSize:  defaultHubBuffer,
	}
}

// Subscribe registers a stream for userID that is removed when ctx ends or the
// returned cancel function is called.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	if userID == "" {
		stream := make(chan Event)
		close(stream)
		return stream, func() {}
	}
	stream := make(chan Event, h.bufferSize)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[int64]chan Event)
	}
	h.subscribers[userID][id] = stream
	h.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			h.unsubscribe(userID, id)
		})
	}
	h.watchers.Add(1)
	go func() {
		defer h.watchers.Done()
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return stream, cancel
}

// Publish delivers event to every subscriber of its user without blocking.
func (h *Hub) Publish(event Event) {
	if event.UserID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, stream := range h.subscribers[event.UserID] {
		select {
		case stream <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of live streams for userID.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

func (h *Hub) unsubscribe(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers := h.subscribers[userID]
	if subscribers == nil {
		return
	}
	delete(subscribers, id)
	if len(subscribers) == 0 {
		delete(h.subscribers, userID)
	}
}
