// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"testing"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	topic := NewTopic[int](nil)

	var first, second []int
	topic.Subscribe(func(v int) { first = append(first, v) })
	topic.Subscribe(func(v int) { second = append(second, v) })

	topic.Publish(1)
	topic.Publish(2)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("deliveries: first=%v second=%v", first, second)
	}
	if first[0] != 1 || first[1] != 2 {
		t.Fatalf("first received %v", first)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	topic := NewTopic[string](nil)

	var got []string
	unsubscribe := topic.Subscribe(func(v string) { got = append(got, v) })

	topic.Publish("a")
	unsubscribe()
	topic.Publish("b")
	unsubscribe() // idempotent

	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("got %v, want [a]", got)
	}
	if topic.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", topic.SubscriberCount())
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	topic := NewTopic[int](nil)

	topic.Subscribe(func(int) { panic("boom") })
	delivered := false
	topic.Subscribe(func(int) { delivered = true })

	topic.Publish(7)

	if !delivered {
		t.Fatal("subscriber after the panicking one was not invoked")
	}
}

func TestSubscribeDuringPublishTakesEffectNextPublish(t *testing.T) {
	topic := NewTopic[int](nil)

	lateDeliveries := 0
	topic.Subscribe(func(int) {
		if topic.SubscriberCount() == 1 {
			topic.Subscribe(func(int) { lateDeliveries++ })
		}
	})

	topic.Publish(1)
	if lateDeliveries != 0 {
		t.Fatal("subscriber added during publish received the same publish")
	}
	topic.Publish(2)
	if lateDeliveries != 1 {
		t.Fatalf("lateDeliveries = %d, want 1", lateDeliveries)
	}
}
