// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that the
// notification engine's timer-driven components (transport heartbeat and
// reconnection, fallback polling, unread-count debouncing, banner
// staleness checks) can be tested deterministically.
//
// Production code accepts a Clock and is wired with Real(). Tests wire
// Fake(), which stands still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
//	manager := transport.New(transport.Config{Clock: c, ...})
//	// ... trigger a disconnect ...
//	c.WaitForTimers(1)            // reconnect timer registered
//	c.Advance(5 * time.Second)    // fire it deterministically
//
// WaitForTimers removes the race between a goroutine registering a timer
// and the test advancing time past its deadline.
package clock
