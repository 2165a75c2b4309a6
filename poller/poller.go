// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller implements the fallback polling loop that keeps
// notification state converging when the push channel is down or
// silently lossy. It polls on a fixed interval, supports out-of-band
// refresh triggers, and degrades to an unread-count-only probe when the
// full list fetch fails.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
	"github.com/vanvanhasnophi/a-final-work-sub000/source"
)

// UnreadUnknown marks a snapshot whose advisory unread count could not
// be fetched; consumers fall back to deriving the count locally.
const UnreadUnknown = -1

// DefaultInterval is the polling period when Config.Interval is zero.
const DefaultInterval = 30 * time.Second

const defaultPageSize = 50

// Source is the remote surface the poller reads. *source.Client
// implements it.
type Source interface {
	List(ctx context.Context, userID string, page, pageSize int) (*source.ListResponse, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

var _ Source = (*source.Client)(nil)

// Snapshot is one poll result. CountOnly snapshots carry no records:
// the list fetch failed but the unread probe succeeded, so consumers
// may update the badge without touching the merged set.
type Snapshot struct {
	Records []notification.Notification
	Total   int

	// UnreadCount is the server's advisory count, or UnreadUnknown.
	UnreadCount int

	CountOnly bool
}

// Config holds configuration for creating a Poller.
type Config struct {
	// Source is the remote notification surface. Required.
	Source Source

	// UserID scopes every poll. Required.
	UserID string

	// Clock drives the polling ticker. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// Interval is the polling period. Zero means DefaultInterval.
	Interval time.Duration

	// PageSize is the list fetch page size. Zero means 50.
	PageSize int
}

// Poller runs the fallback polling loop. Create with New, start with
// Run, and consume results from Snapshots.
type Poller struct {
	source   Source
	userID   string
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	pageSize int

	snapshots chan Snapshot
	refresh   chan struct{}
	stop      chan struct{}
	done      chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a Poller. The loop does not run until Run is called.
func New(cfg Config) (*Poller, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("poller: Source is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("poller: UserID is required")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Poller{
		source:    cfg.Source,
		userID:    cfg.UserID,
		clock:     c,
		logger:    logger,
		interval:  interval,
		pageSize:  pageSize,
		snapshots: make(chan Snapshot, 1),
		refresh:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Snapshots returns the channel carrying poll results. Only the latest
// snapshot is retained when the consumer falls behind.
func (p *Poller) Snapshots() <-chan Snapshot {
	return p.snapshots
}

// Run starts the polling loop: one immediate poll, then one per
// interval. Subsequent calls are no-ops.
func (p *Poller) Run() {
	p.startOnce.Do(func() {
		go p.loop()
	})
}

// Refresh requests an immediate out-of-band poll. Coalesced if one is
// already queued.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Stop terminates the loop and waits for it to exit. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.Run() // ensure done is eventually closed even if Run was never called
	<-p.done
}

func (p *Poller) loop() {
	defer close(p.done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.poll()
		case <-p.refresh:
			p.poll()
		}
	}
}

// poll fetches one snapshot and publishes it. A failed list fetch
// degrades to an unread-count probe; if that fails too the cycle is
// skipped entirely.
func (p *Poller) poll() {
	select {
	case <-p.stop:
		return
	default:
	}

	ctx := context.Background()
	listResponse, listErr := p.source.List(ctx, p.userID, 1, p.pageSize)
	if listErr != nil {
		count, countErr := p.source.UnreadCount(ctx, p.userID)
		if countErr != nil {
			p.logger.Warn("poller: poll cycle failed",
				"list_error", listErr,
				"count_error", countErr,
			)
			return
		}
		p.logger.Warn("poller: list fetch failed, degrading to unread count", "error", listErr)
		p.publish(Snapshot{UnreadCount: count, CountOnly: true})
		return
	}

	unread := UnreadUnknown
	if count, err := p.source.UnreadCount(ctx, p.userID); err != nil {
		p.logger.Debug("poller: advisory unread count unavailable", "error", err)
	} else {
		unread = count
	}

	p.publish(Snapshot{
		Records:     listResponse.Records,
		Total:       listResponse.Total,
		UnreadCount: unread,
	})
}

// publish retains only the latest snapshot: a stale queued snapshot is
// discarded in favor of the new one.
func (p *Poller) publish(snapshot Snapshot) {
	for {
		select {
		case p.snapshots <- snapshot:
			return
		default:
			select {
			case <-p.snapshots:
			default:
			}
		}
	}
}
