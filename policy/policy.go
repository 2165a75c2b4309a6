// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy decides whether a notification may be shown as a
// banner. The policy exists to keep banners rare and relevant: reading
// history, staleness, repeat suppression, and a per-day impression cap
// all gate a candidate before it reaches the screen. Rejection only
// affects the banner — the notification itself still lands in the
// merged set and the unread count.
//
// A Policy is created per authenticated session and carries
// session-scoped state (the snapshot allowance, the suppression map).
// Persistent state (daily impression counters) lives in the cache so
// the cap survives restarts within a day.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxDisplaysPerDay = 3
	DefaultStalenessWindow   = 5 * time.Minute
	DefaultSuppressionWindow = 30 * time.Second
	DefaultRetentionDays     = 7
)

// dayFormat keys impression counters; lexicographic order matches
// chronological order, which pruning relies on.
const dayFormat = "2006-01-02"

// DisplayStore is the persistent impression counter surface.
// *cache.Store implements it.
type DisplayStore interface {
	DisplayCount(ctx context.Context, id, day string) (int, error)
	IncrementDisplay(ctx context.Context, id, day string) (int, error)
	PruneDisplay(ctx context.Context, cutoffDay string) (int, error)
}

// Candidate is one notification proposed for banner display.
type Candidate struct {
	Notification notification.Notification

	// FromPush marks candidates arriving on the realtime channel.
	// Candidates surfaced from a poll or initial snapshot are subject
	// to the once-per-session snapshot allowance instead of the
	// staleness window.
	FromPush bool
}

// Config holds configuration for creating a Policy.
type Config struct {
	// Store persists daily impression counters. Required.
	Store DisplayStore

	// Clock supplies the current time. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// Location resolves calendar days for the impression cap. Nil
	// means UTC.
	Location *time.Location

	// MaxDisplaysPerDay caps banner impressions per notification per
	// calendar day. Zero means DefaultMaxDisplaysPerDay.
	MaxDisplaysPerDay int

	// StalenessWindow rejects push candidates older than this. Zero
	// means DefaultStalenessWindow.
	StalenessWindow time.Duration

	// SuppressionWindow rejects a candidate authorized for the same
	// notification within this window. Zero means
	// DefaultSuppressionWindow.
	SuppressionWindow time.Duration

	// RetentionDays bounds how long impression counters are kept. Zero
	// means DefaultRetentionDays.
	RetentionDays int
}

// Policy gates banner display. Safe for concurrent use.
type Policy struct {
	store       DisplayStore
	clock       clock.Clock
	logger      *slog.Logger
	location    *time.Location
	maxPerDay   int
	staleness   time.Duration
	suppression time.Duration
	retention   int

	mu                 sync.Mutex
	snapshotConsidered bool
	lastAuthorized     map[string]time.Time
	lastPruneDay       string
}

// New creates a Policy.
func New(cfg Config) (*Policy, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("policy: Store is required")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	maxPerDay := cfg.MaxDisplaysPerDay
	if maxPerDay <= 0 {
		maxPerDay = DefaultMaxDisplaysPerDay
	}
	staleness := cfg.StalenessWindow
	if staleness <= 0 {
		staleness = DefaultStalenessWindow
	}
	suppression := cfg.SuppressionWindow
	if suppression <= 0 {
		suppression = DefaultSuppressionWindow
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}

	return &Policy{
		store:          cfg.Store,
		clock:          c,
		logger:         logger,
		location:       location,
		maxPerDay:      maxPerDay,
		staleness:      staleness,
		suppression:    suppression,
		retention:      retention,
		lastAuthorized: make(map[string]time.Time),
	}, nil
}

// Authorize reports whether the candidate may be shown as a banner and,
// when it may, records the impression. Store failures reject the
// candidate: a broken counter must not turn the cap off.
func (p *Policy) Authorize(ctx context.Context, candidate Candidate) bool {
	record := candidate.Notification
	if record.ID == "" || record.Read {
		return false
	}

	now := p.clock.Now()
	day := now.In(p.location).Format(dayFormat)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked(ctx, day)

	if candidate.FromPush {
		if !record.CreatedAt.IsZero() && now.Sub(record.CreatedAt) > p.staleness {
			p.logger.Debug("policy: rejecting stale push candidate",
				"id", record.ID, "created_at", record.CreatedAt)
			return false
		}
	} else {
		// Snapshot-surfaced notifications get one shot per session:
		// the first candidate consumes the allowance whether or not it
		// passes the remaining gates.
		if p.snapshotConsidered {
			return false
		}
		p.snapshotConsidered = true
	}

	if last, ok := p.lastAuthorized[record.ID]; ok && now.Sub(last) < p.suppression {
		p.logger.Debug("policy: suppressing repeat banner", "id", record.ID)
		return false
	}

	count, err := p.store.DisplayCount(ctx, record.ID, day)
	if err != nil {
		p.logger.Warn("policy: display count lookup failed, rejecting candidate",
			"id", record.ID, "error", err)
		return false
	}
	if count >= p.maxPerDay {
		p.logger.Debug("policy: daily banner cap reached", "id", record.ID, "day", day)
		return false
	}

	if _, err := p.store.IncrementDisplay(ctx, record.ID, day); err != nil {
		p.logger.Warn("policy: recording impression failed, rejecting candidate",
			"id", record.ID, "error", err)
		return false
	}
	p.lastAuthorized[record.ID] = now
	return true
}

// pruneLocked drops impression counters older than the retention bound.
// Runs at most once per calendar day. Caller holds p.mu.
func (p *Policy) pruneLocked(ctx context.Context, day string) {
	if day == p.lastPruneDay {
		return
	}
	p.lastPruneDay = day

	cutoff := p.clock.Now().In(p.location).AddDate(0, 0, -p.retention).Format(dayFormat)
	removed, err := p.store.PruneDisplay(ctx, cutoff)
	if err != nil {
		// Pruning is best-effort; stale counters only waste space.
		p.logger.Warn("policy: pruning impression counters failed", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Debug("policy: pruned impression counters", "removed", removed, "cutoff", cutoff)
	}
}
