package notification

import "sync"

const defaultSubscriberBuffer = 64

// Message is the outbound envelope pushed to channel subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans messages out to subscribers. Slow subscribers drop messages
// rather than blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Message
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[uint64]chan Message),
	}
}

// Subscribe returns a receive channel and a cancel func. Cancel is safe to
// call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		ch := make(chan Message)
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	ch := make(chan Message, buffer)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
	}
}

// Publish delivers the message to every subscriber with buffer space.
func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close drops all subscribers; further publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
