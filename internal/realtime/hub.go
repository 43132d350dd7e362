package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/model/chat"
)

// Hub fans newly inserted messages out to per-conversation subscribers
// without the client polling. Delivery is at-least-once; consumers are
// expected to deduplicate by message id.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe registers fn for inserts on one conversation and returns the
// handle used to cancel it. fn must not call Unsubscribe on its own
// subscription; post to a queue instead of mutating state directly.
func (h *Hub) Subscribe(conversationID uuid.UUID, fn func(chat.Message)) *Subscription {
	sub := &Subscription{
		hub:            h,
		conversationID: conversationID,
		fn:             fn,
	}

	h.mu.Lock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[conversationID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers an inserted message to every subscriber of its
// conversation. Rows that fail shape validation are dropped rather than
// trusted.
func (h *Hub) Publish(msg chat.Message) {
	if err := msg.Validate(); err != nil {
		slog.Warn("dropping malformed realtime message", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs[msg.ConversationID]))
	for sub := range h.subs[msg.ConversationID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(msg)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.conversationID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.conversationID)
	}
}

// Subscription is the cancellation handle returned by Subscribe.
type Subscription struct {
	hub            *Hub
	conversationID uuid.UUID
	fn             func(chat.Message)

	mu     sync.Mutex
	closed bool
}

func (s *Subscription) deliver(msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// In-flight event arriving after cancellation: discard silently.
		return
	}
	s.fn(msg)
}

// Unsubscribe stops all further callback invocations. It is safe to call
// multiple times; once it returns, the callback will not run again, even
// for events that were already in flight.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.remove(s)
}
