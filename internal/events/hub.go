package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is the frame delivered to subscribers
type Message struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Subscriber is one connected client. Messages are delivered through a
// buffered channel so a slow consumer cannot stall the matching path.
type Subscriber struct {
	ch chan Message
}

func NewSubscriber(buffer int) *Subscriber {
	return &Subscriber{ch: make(chan Message, buffer)}
}

// C exposes the subscriber's delivery channel
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// Deliver enqueues a message without blocking. It reports false when the
// subscriber's buffer is full and the message was dropped.
func (s *Subscriber) Deliver(msg Message) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Hub fans lifecycle events out to subscribers grouped in per-pair rooms.
// Publish delivers to exactly the subscribers in the pair's room at call
// time; there is no buffering or replay for late joiners. Publishes for one
// pair are serialized upstream by the matching path, and each subscriber
// channel is FIFO, so per-pair delivery order matches publish order.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe adds a subscriber to a pair's room
func (h *Hub) Subscribe(sub *Subscriber, pair string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[pair]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[pair] = room
	}
	room[sub] = struct{}{}
}

// Unsubscribe removes a subscriber from a pair's room
func (h *Hub) Unsubscribe(sub *Subscriber, pair string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[pair]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, pair)
		}
	}
}

// Drop removes a subscriber from every room, typically on disconnect
func (h *Hub) Drop(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for pair, room := range h.rooms {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, pair)
		}
	}
}

// Publish delivers an event to the pair's current room members
func (h *Hub) Publish(event Event) {
	msg := Message{
		Event:     event.Kind.WireName(),
		Data:      event.Payload,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[event.Pair] {
		if !sub.Deliver(msg) {
			log.Warn().
				Str("pair", event.Pair).
				Str("event", msg.Event).
				Msg("dropped event for slow subscriber")
		}
	}
}
