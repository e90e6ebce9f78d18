// Package bus provides typed publish/subscribe hubs for component communication.
package bus

import (
	"sync"
)

// Handler receives published values.
type Handler[T any] func(T)

// Hub fans a value out to every current subscriber. Delivery is synchronous
// and in subscription order, so values reach each subscriber in publish order.
type Hub[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler[T]
	order    []uint64
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{handlers: make(map[uint64]Handler[T])}
}

// Subscribe registers handler until the returned subscription is cancelled.
func (h *Hub[T]) Subscribe(handler Handler[T]) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.handlers[id] = handler
	h.order = append(h.order, id)

	return &Subscription{cancel: func() { h.remove(id) }}
}

// Publish delivers value to a snapshot of the current subscribers.
func (h *Hub[T]) Publish(value T) {
	h.mu.RLock()
	handlers := make([]Handler[T], 0, len(h.order))
	for _, id := range h.order {
		handlers = append(handlers, h.handlers[id])
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(value)
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

// Clear removes all subscribers.
func (h *Hub[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = make(map[uint64]Handler[T])
	h.order = nil
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.handlers[id]; !ok {
		return
	}
	delete(h.handlers, id)
	for i, existing := range h.order {
		if existing == id {
			h.order = append(h.order[:i:i], h.order[i+1:]...)
			break
		}
	}
}

// Subscription cancels a single registration.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery to this subscription. Safe to call repeatedly.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
