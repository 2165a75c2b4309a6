// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vanvanhasnophi/a-final-work-sub000/cache"
	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

func testPolicy(t *testing.T, fake *clock.FakeClock) *Policy {
	t.Helper()
	store, err := cache.Open(cache.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	p, err := New(Config{Store: store, Clock: fake, Location: time.UTC})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func pushCandidate(id string, createdAt time.Time) Candidate {
	return Candidate{
		Notification: notification.Notification{ID: id, Title: "t", CreatedAt: createdAt},
		FromPush:     true,
	}
}

func TestRejectsReadAndAnonymous(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := testPolicy(t, fake)
	ctx := context.Background()

	read := Candidate{
		Notification: notification.Notification{ID: "n1", Read: true, CreatedAt: fake.Now()},
		FromPush:     true,
	}
	if p.Authorize(ctx, read) {
		t.Fatal("authorized a read notification")
	}
	if p.Authorize(ctx, Candidate{FromPush: true}) {
		t.Fatal("authorized a notification with no ID")
	}
}

func TestStalePushRejected(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := testPolicy(t, fake)
	ctx := context.Background()

	stale := pushCandidate("n1", fake.Now().Add(-6*time.Minute))
	if p.Authorize(ctx, stale) {
		t.Fatal("authorized a stale push candidate")
	}

	fresh := pushCandidate("n2", fake.Now().Add(-time.Minute))
	if !p.Authorize(ctx, fresh) {
		t.Fatal("rejected a fresh push candidate")
	}
}

func TestSnapshotAllowanceIsOncePerSession(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := testPolicy(t, fake)
	ctx := context.Background()

	// Snapshot candidates may be arbitrarily old.
	first := Candidate{Notification: notification.Notification{
		ID:        "n1",
		CreatedAt: fake.Now().Add(-48 * time.Hour),
	}}
	if !p.Authorize(ctx, first) {
		t.Fatal("rejected the first snapshot candidate")
	}

	second := Candidate{Notification: notification.Notification{ID: "n2", CreatedAt: fake.Now()}}
	if p.Authorize(ctx, second) {
		t.Fatal("authorized a second snapshot candidate in the same session")
	}

	// Push candidates are unaffected by the consumed allowance.
	if !p.Authorize(ctx, pushCandidate("n3", fake.Now())) {
		t.Fatal("rejected a push candidate after snapshot allowance was consumed")
	}
}

func TestRepeatSuppression(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p := testPolicy(t, fake)
	ctx := context.Background()

	if !p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
		t.Fatal("rejected initial candidate")
	}
	fake.Advance(10 * time.Second)
	if p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
		t.Fatal("authorized a repeat within the suppression window")
	}
	fake.Advance(25 * time.Second)
	if !p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
		t.Fatal("rejected a repeat after the suppression window passed")
	}

	// Suppression is per notification: a different ID is unaffected.
	if !p.Authorize(ctx, pushCandidate("n2", fake.Now())) {
		t.Fatal("suppression leaked across notification IDs")
	}
}

func TestDailyCap(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	p := testPolicy(t, fake)
	ctx := context.Background()

	authorized := 0
	for i := 0; i < 10; i++ {
		if p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
			authorized++
		}
		fake.Advance(time.Minute) // clear the suppression window each round
	}
	if authorized != DefaultMaxDisplaysPerDay {
		t.Fatalf("authorized %d impressions, want %d", authorized, DefaultMaxDisplaysPerDay)
	}

	// The cap is per notification.
	if !p.Authorize(ctx, pushCandidate("n2", fake.Now())) {
		t.Fatal("cap leaked across notification IDs")
	}
}

func TestCapResetsAtDayBoundary(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC))
	p := testPolicy(t, fake)
	ctx := context.Background()

	for i := 0; i < DefaultMaxDisplaysPerDay; i++ {
		if !p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
			t.Fatalf("rejected impression %d under the cap", i+1)
		}
		fake.Advance(time.Minute)
	}
	if p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
		t.Fatal("authorized over the cap")
	}

	// Cross midnight: the counter is day-scoped.
	fake.Advance(time.Hour)
	if !p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
		t.Fatal("cap did not reset on the new day")
	}
}

func TestPruningDropsOldCounters(t *testing.T) {
	store, err := cache.Open(cache.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	// Seed counters across a range of days.
	for day := 1; day <= 12; day++ {
		key := fmt.Sprintf("2026-03-%02d", day)
		if _, err := store.IncrementDisplay(ctx, "n1", key); err != nil {
			t.Fatalf("IncrementDisplay: %v", err)
		}
	}

	fake := clock.Fake(time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC))
	p, err := New(Config{Store: store, Clock: fake, Location: time.UTC})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Any authorization triggers the once-per-day prune.
	p.Authorize(ctx, pushCandidate("n2", fake.Now()))

	// Days before 2026-03-05 (12 minus 7-day retention) are gone.
	count, err := store.DisplayCount(ctx, "n1", "2026-03-04")
	if err != nil {
		t.Fatalf("DisplayCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("pruned day still has count %d", count)
	}
	count, err = store.DisplayCount(ctx, "n1", "2026-03-05")
	if err != nil {
		t.Fatalf("DisplayCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("retained day has count %d, want 1", count)
	}
}

func TestCapSurvivesRestart(t *testing.T) {
	store, err := cache.Open(cache.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	newPolicy := func() *Policy {
		p, err := New(Config{Store: store, Clock: fake, Location: time.UTC})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return p
	}

	p := newPolicy()
	for i := 0; i < DefaultMaxDisplaysPerDay; i++ {
		if !p.Authorize(ctx, pushCandidate("n1", fake.Now())) {
			t.Fatalf("rejected impression %d under the cap", i+1)
		}
		fake.Advance(time.Minute)
	}

	// A fresh Policy over the same store still sees the spent cap.
	if newPolicy().Authorize(ctx, pushCandidate("n1", fake.Now())) {
		t.Fatal("daily cap lost across restart")
	}
}
