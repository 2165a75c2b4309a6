// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"log/slog"

	"github.com/vanvanhasnophi/a-final-work-sub000/bus"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

// Events carries the engine's outbound topics. UI layers subscribe to
// what they render: the list view to SetChanged, the badge to
// UnreadChanged, the toast layer to Banner, the connectivity indicator
// to TransportState.
type Events struct {
	// SetChanged publishes the full reconciled notification list,
	// newest first, after every change to the merged set.
	SetChanged *bus.Topic[[]notification.Notification]

	// UnreadChanged publishes the unread count. Externally-driven
	// changes (snapshots, pushes) are debounced; user-driven changes
	// publish immediately.
	UnreadChanged *bus.Topic[int]

	// Banner publishes notifications the display policy authorized for
	// banner display.
	Banner *bus.Topic[notification.Notification]

	// TransportState publishes push channel connectivity: true when
	// connected, false on abnormal close.
	TransportState *bus.Topic[bool]
}

// NewEvents creates the engine's topic set.
func NewEvents(logger *slog.Logger) *Events {
	return &Events{
		SetChanged:     bus.NewTopic[[]notification.Notification](logger),
		UnreadChanged:  bus.NewTopic[int](logger),
		Banner:         bus.NewTopic[notification.Notification](logger),
		TransportState: bus.NewTopic[bool](logger),
	}
}
