// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the in-process publish/subscribe fabric distributing
// engine state to downstream consumers (the UI layer, telemetry). Each
// Topic carries one strongly-typed payload; there are no stringly-typed
// event names to mistype. Delivery is synchronous, at-least-once to
// current subscribers, with no persistence — after a restart, the first
// reconciliation pass republishes all subscriber-visible state.
package bus

import (
	"io"
	"log/slog"
	"sort"
	"sync"
)

// Topic is a typed publish/subscribe channel. The zero value is not
// usable; create topics with NewTopic.
//
// Handlers run synchronously in the publisher's goroutine, in
// subscription order. A panicking handler is recovered and logged, and
// never prevents the remaining handlers from running.
type Topic[T any] struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(T)
	nextID   int
}

// NewTopic creates a topic. A nil logger discards the panic reports.
func NewTopic[T any](logger *slog.Logger) *Topic[T] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Topic[T]{
		logger:   logger,
		handlers: make(map[int]func(T)),
	}
}

// Subscribe registers handler and returns the function that removes
// it. Unsubscribing is idempotent and does not affect publishers or
// other subscribers.
func (t *Topic[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.handlers[id] = handler

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.handlers, id)
	}
}

// Publish delivers value to every current subscriber. The subscriber
// snapshot is taken under the lock, so a handler that subscribes or
// unsubscribes during delivery takes effect on the next Publish.
func (t *Topic[T]) Publish(value T) {
	t.mu.Lock()
	ids := make([]int, 0, len(t.handlers))
	for id := range t.handlers {
		ids = append(ids, id)
	}
	// Map iteration order is random; deliver in subscription order.
	sort.Ints(ids)
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, t.handlers[id])
	}
	t.mu.Unlock()

	for _, handler := range handlers {
		t.invoke(handler, value)
	}
}

// SubscriberCount returns the number of active subscribers.
func (t *Topic[T]) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

func (t *Topic[T]) invoke(handler func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("bus subscriber panicked", "panic", r)
		}
	}()
	handler(value)
}
