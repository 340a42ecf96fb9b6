// Package watch fans out values to per-key subscribers.
package watch

import "sync"

// Hub delivers published values to every subscriber of a key. Publish never
// blocks: each subscriber has a one-slot buffer and a slow reader only ever
// sees the latest value.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber[T]]struct{}
	closed bool
}

type subscriber[T any] struct {
	ch chan T
}

// NewHub returns an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[*subscriber[T]]struct{})}
}

// Subscribe registers for values published under key. The returned cancel
// func unregisters and closes the channel; it is safe to call more than once.
func (h *Hub[T]) Subscribe(key string) (<-chan T, func()) {
	s := &subscriber[T]{ch: make(chan T, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber[T]]struct{})
	}
	h.subs[key][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[key][s]; !ok {
				return
			}
			delete(h.subs[key], s)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Publish sends v to every current subscriber of key.
func (h *Hub[T]) Publish(key string, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[key] {
		select {
		case s.ch <- v:
			continue
		default:
		}
		// Drop the stale value and keep the newest.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- v:
		default:
		}
	}
}

// Subscribers returns how many subscribers key has.
func (h *Hub[T]) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for key, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, key)
	}
}
