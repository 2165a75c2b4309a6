// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine reconciles notification state from every source that
// produces it — server snapshots from the fallback poller, realtime
// pushes from the transport, and locally-originated records from the
// cache — into one deduplicated, ordered set. It derives the unread
// count from that set, gates banner display through the display
// policy, and distributes all of it on typed bus topics.
//
// Mutations are optimistic: local state changes and publishes
// immediately, the server call runs asynchronously, and a failed call
// is never rolled back — the next poll converges the set back to
// server truth. Read-state is monotonic within a session: once a
// notification is read, no snapshot or push can flip it back to
// unread.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vanvanhasnophi/a-final-work-sub000/cache"
	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
	"github.com/vanvanhasnophi/a-final-work-sub000/policy"
	"github.com/vanvanhasnophi/a-final-work-sub000/poller"
	"github.com/vanvanhasnophi/a-final-work-sub000/source"
	"github.com/vanvanhasnophi/a-final-work-sub000/transport"
)

// DefaultDebounceInterval batches externally-driven unread count
// publishes so a burst of pushes repaints the badge once.
const DefaultDebounceInterval = 300 * time.Millisecond

// remoteTimeout bounds each asynchronous server mutation.
const remoteTimeout = 10 * time.Second

// SourceClient is the mutation surface of the server of record.
// *source.Client implements it.
type SourceClient interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, userID string) error
}

// LocalStore persists locally-originated notifications. *cache.Store
// implements it.
type LocalStore interface {
	LocalNotifications(ctx context.Context) ([]notification.Notification, error)
	PutLocal(ctx context.Context, record notification.Notification) error
	RemoveLocal(ctx context.Context, id string) error
	ClearLocal(ctx context.Context) error
}

// Authorizer gates banner display. *policy.Policy implements it.
type Authorizer interface {
	Authorize(ctx context.Context, candidate policy.Candidate) bool
}

var (
	_ SourceClient = (*source.Client)(nil)
	_ LocalStore   = (*cache.Store)(nil)
	_ Authorizer   = (*policy.Policy)(nil)
)

// Config holds configuration for creating an Engine.
type Config struct {
	// Source is the server-of-record mutation surface. Required.
	Source SourceClient

	// Local persists locally-originated notifications. Required.
	Local LocalStore

	// UserID scopes server mutations. Required.
	UserID string

	// Authorizer gates banner display. Nil means no banners.
	Authorizer Authorizer

	// Clock drives the debounce timer. Nil means the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// DebounceInterval batches external unread publishes. Zero means
	// DefaultDebounceInterval.
	DebounceInterval time.Duration
}

// Engine is the reconciliation core. Create one per authenticated
// session and Stop it on logout. Safe for concurrent use.
type Engine struct {
	source     SourceClient
	local      LocalStore
	userID     string
	authorizer Authorizer
	clock      clock.Clock
	logger     *slog.Logger
	debounce   time.Duration
	events     *Events

	mu                sync.Mutex
	set               map[string]notification.Notification
	firstSnapshotDone bool
	stopped           bool
	debounceTimer     *clock.Timer
	pendingUnread     int
	lastUnread        int

	quit     chan struct{}
	quitOnce sync.Once
	remote   sync.WaitGroup
	loops    sync.WaitGroup
}

// New creates an Engine with an empty set.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("engine: Source is required")
	}
	if cfg.Local == nil {
		return nil, fmt.Errorf("engine: Local is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("engine: UserID is required")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.DebounceInterval
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}

	return &Engine{
		source:     cfg.Source,
		local:      cfg.Local,
		userID:     cfg.UserID,
		authorizer: cfg.Authorizer,
		clock:      c,
		logger:     logger,
		debounce:   debounce,
		events:     NewEvents(logger),
		set:        make(map[string]notification.Notification),
		lastUnread: -1,
		quit:       make(chan struct{}),
	}, nil
}

// Events returns the engine's outbound topics.
func (e *Engine) Events() *Events {
	return e.events
}

// Consume starts the loop feeding the engine from the transport and the
// poller. Either channel may be nil. The loop exits when both channels
// are exhausted or the engine is stopped.
func (e *Engine) Consume(events <-chan transport.Event, snapshots <-chan poller.Snapshot) {
	e.loops.Add(1)
	go func() {
		defer e.loops.Done()
		ctx := context.Background()
		for events != nil || snapshots != nil {
			select {
			case <-e.quit:
				return
			case event, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				switch event.Kind {
				case transport.KindConnected:
					e.events.TransportState.Publish(true)
				case transport.KindDisconnected:
					e.events.TransportState.Publish(false)
				case transport.KindNotification:
					e.ApplyPushed(ctx, event.Notification)
				}
			case snapshot, ok := <-snapshots:
				if !ok {
					snapshots = nil
					continue
				}
				e.HandleSnapshot(ctx, snapshot)
			}
		}
	}()
}

// Stop cancels the debounce timer, terminates the consume loop, and
// waits for in-flight server mutations to finish. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	e.mu.Unlock()

	e.quitOnce.Do(func() { close(e.quit) })
	e.loops.Wait()
	e.remote.Wait()
}

// Notifications returns the reconciled set, newest first.
func (e *Engine) Notifications() []notification.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedLocked()
}

// UnreadCount returns the locally-derived unread count.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unreadLocked()
}

// HandleSnapshot reconciles one poll result. A full snapshot replaces
// the set with the server page merged with the local cache; read-state
// is OR-merged against the previous set so reads never regress. A
// count-only snapshot updates the badge from the server's advisory
// count without touching the set.
func (e *Engine) HandleSnapshot(ctx context.Context, snapshot poller.Snapshot) {
	if snapshot.CountOnly {
		if snapshot.UnreadCount < 0 {
			return
		}
		e.mu.Lock()
		e.scheduleUnreadLocked(snapshot.UnreadCount)
		e.mu.Unlock()
		return
	}

	locals, err := e.local.LocalNotifications(ctx)
	if err != nil {
		// Server records still land; local-only records return on the
		// next successful read.
		e.logger.Warn("engine: reading local notifications failed", "error", err)
	}

	e.mu.Lock()
	next := make(map[string]notification.Notification, len(snapshot.Records)+len(locals))
	for _, record := range locals {
		next[record.ID] = record
	}
	for _, record := range snapshot.Records {
		// Server fields win on an ID collision, read-state still ORs.
		if prev, ok := next[record.ID]; ok && prev.Read {
			record.Read = true
		}
		next[record.ID] = record
	}
	for id, record := range next {
		if old, ok := e.set[id]; ok && old.Read && !record.Read {
			record.Read = true
			next[id] = record
		}
	}
	e.set = next

	var candidate notification.Notification
	considerCandidate := !e.firstSnapshotDone
	if considerCandidate {
		e.firstSnapshotDone = true
		candidate = latestUnread(next)
	}

	sorted := e.sortedLocked()
	derived := e.unreadLocked()
	e.scheduleUnreadLocked(derived)
	e.mu.Unlock()

	// The server's advisory count covers the whole backlog; the
	// derived count covers the merged page. Divergence is expected
	// past one page, but worth seeing.
	if snapshot.UnreadCount >= 0 && snapshot.UnreadCount != derived {
		e.logger.Debug("engine: advisory unread count diverges from derived",
			"advisory", snapshot.UnreadCount, "derived", derived)
	}

	e.events.SetChanged.Publish(sorted)

	// At most one snapshot-surfaced banner per session: the newest
	// unread record from the first full snapshot.
	if considerCandidate && candidate.ID != "" && e.authorize(ctx, candidate, false) {
		e.events.Banner.Publish(candidate)
	}
}

// ApplyPushed merges one realtime-pushed notification into the set and
// proposes it for banner display.
func (e *Engine) ApplyPushed(ctx context.Context, record notification.Notification) {
	if record.ID == "" {
		return
	}

	e.mu.Lock()
	if record.Origin == "" {
		record.Origin = notification.OriginServer
	}
	if old, ok := e.set[record.ID]; ok && old.Read {
		record.Read = true
	}
	e.set[record.ID] = record
	sorted := e.sortedLocked()
	e.scheduleUnreadLocked(e.unreadLocked())
	e.mu.Unlock()

	e.events.SetChanged.Publish(sorted)

	if e.authorize(ctx, record, true) {
		e.events.Banner.Publish(record)
	}
}

// MarkRead marks one notification read. Local state and the published
// count update immediately; the server call runs asynchronously for
// server-owned records. Marking an already-read record is a no-op.
func (e *Engine) MarkRead(ctx context.Context, id string) error {
	e.mu.Lock()
	record, ok := e.set[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine: unknown notification %q", id)
	}
	if record.Read {
		e.mu.Unlock()
		return nil
	}
	record.Read = true
	e.set[id] = record
	sorted, unread := e.sortedLocked(), e.flushUnreadLocked()
	e.mu.Unlock()

	e.events.SetChanged.Publish(sorted)
	e.publishUnread(unread)

	if notification.IsLocal(id) {
		if err := e.local.PutLocal(ctx, record); err != nil {
			e.logger.Warn("engine: persisting local read state failed", "id", id, "error", err)
		}
		return nil
	}
	e.spawnRemote("mark_read", func(ctx context.Context) error {
		return e.source.MarkRead(ctx, id)
	})
	return nil
}

// MarkAllRead marks every notification in the set read.
func (e *Engine) MarkAllRead(ctx context.Context) error {
	e.mu.Lock()
	var changedLocals []notification.Notification
	changed := false
	for id, record := range e.set {
		if record.Read {
			continue
		}
		record.Read = true
		e.set[id] = record
		changed = true
		if notification.IsLocal(id) {
			changedLocals = append(changedLocals, record)
		}
	}
	if !changed {
		e.mu.Unlock()
		return nil
	}
	sorted, unread := e.sortedLocked(), e.flushUnreadLocked()
	e.mu.Unlock()

	e.events.SetChanged.Publish(sorted)
	e.publishUnread(unread)

	for _, record := range changedLocals {
		if err := e.local.PutLocal(ctx, record); err != nil {
			e.logger.Warn("engine: persisting local read state failed", "id", record.ID, "error", err)
		}
	}
	e.spawnRemote("mark_all_read", func(ctx context.Context) error {
		return e.source.MarkAllRead(ctx, e.userID)
	})
	return nil
}

// Delete removes one notification. Local-origin records are deleted
// from the cache synchronously; server-owned records are deleted
// remotely without blocking — until the call lands, the next snapshot
// may briefly resurrect the record.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	if _, ok := e.set[id]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine: unknown notification %q", id)
	}
	delete(e.set, id)
	sorted, unread := e.sortedLocked(), e.flushUnreadLocked()
	e.mu.Unlock()

	e.events.SetChanged.Publish(sorted)
	e.publishUnread(unread)

	if notification.IsLocal(id) {
		if err := e.local.RemoveLocal(ctx, id); err != nil {
			e.logger.Warn("engine: removing local notification failed", "id", id, "error", err)
		}
		return nil
	}
	e.spawnRemote("delete", func(ctx context.Context) error {
		return e.source.Delete(ctx, id)
	})
	return nil
}

// DeleteAll clears the whole set, local records first so a crash
// between the two steps cannot resurrect a dismissed local warning.
func (e *Engine) DeleteAll(ctx context.Context) error {
	if err := e.local.ClearLocal(ctx); err != nil {
		return fmt.Errorf("engine: clearing local notifications: %w", err)
	}

	e.mu.Lock()
	e.set = make(map[string]notification.Notification)
	sorted, unread := e.sortedLocked(), e.flushUnreadLocked()
	e.mu.Unlock()

	e.events.SetChanged.Publish(sorted)
	e.publishUnread(unread)

	e.spawnRemote("delete_all", func(ctx context.Context) error {
		return e.source.DeleteAll(ctx, e.userID)
	})
	return nil
}

// AddLocal synthesizes a client-only notification (for example the
// weak password warning at login), persists it, merges it into the
// set, and proposes it for banner display.
func (e *Engine) AddLocal(ctx context.Context, title, content string, typ notification.Type, priority notification.Priority) (notification.Notification, error) {
	record := notification.NewLocal(title, content, typ, priority, e.clock.Now())
	if err := e.local.PutLocal(ctx, record); err != nil {
		// Keep it in memory for this session even if persistence
		// failed.
		e.logger.Warn("engine: persisting local notification failed", "id", record.ID, "error", err)
	}

	e.mu.Lock()
	e.set[record.ID] = record
	sorted, unread := e.sortedLocked(), e.flushUnreadLocked()
	e.mu.Unlock()

	e.events.SetChanged.Publish(sorted)
	e.publishUnread(unread)

	if e.authorize(ctx, record, true) {
		e.events.Banner.Publish(record)
	}
	return record, nil
}

// sortedLocked returns the set ordered newest first, ID ascending on
// ties. Caller holds e.mu.
func (e *Engine) sortedLocked() []notification.Notification {
	records := make([]notification.Notification, 0, len(e.set))
	for _, record := range e.set {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

func (e *Engine) unreadLocked() int {
	count := 0
	for _, record := range e.set {
		if !record.Read {
			count++
		}
	}
	return count
}

// scheduleUnreadLocked arms (or re-arms) the debounce timer with the
// count to publish. Each new external update pushes the publish out
// another interval. Caller holds e.mu.
func (e *Engine) scheduleUnreadLocked(count int) {
	if e.stopped {
		return
	}
	e.pendingUnread = count
	if e.debounceTimer != nil {
		e.debounceTimer.Reset(e.debounce)
		return
	}
	e.debounceTimer = e.clock.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return
		}
		count := e.pendingUnread
		if count == e.lastUnread {
			e.mu.Unlock()
			return
		}
		e.lastUnread = count
		e.mu.Unlock()
		e.events.UnreadChanged.Publish(count)
	})
}

// flushUnreadLocked cancels any pending debounced publish and returns
// the current derived count for immediate publication. User-driven
// mutations bypass the debounce. Caller holds e.mu.
func (e *Engine) flushUnreadLocked() int {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	count := e.unreadLocked()
	e.pendingUnread = count
	return count
}

func (e *Engine) publishUnread(count int) {
	e.mu.Lock()
	if count == e.lastUnread {
		e.mu.Unlock()
		return
	}
	e.lastUnread = count
	e.mu.Unlock()
	e.events.UnreadChanged.Publish(count)
}

func (e *Engine) authorize(ctx context.Context, record notification.Notification, fromPush bool) bool {
	if e.authorizer == nil {
		return false
	}
	return e.authorizer.Authorize(ctx, policy.Candidate{Notification: record, FromPush: fromPush})
}

// spawnRemote runs one server mutation asynchronously. Failures are
// logged, never rolled back — the poller reconverges the set.
func (e *Engine) spawnRemote(op string, fn func(context.Context) error) {
	e.remote.Add(1)
	go func() {
		defer e.remote.Done()
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.Warn("engine: server mutation failed", "op", op, "error", err)
		}
	}()
}

// latestUnread picks the newest unread record, ID ascending on ties.
// Zero value when everything is read.
func latestUnread(set map[string]notification.Notification) notification.Notification {
	var best notification.Notification
	for _, record := range set {
		if record.Read {
			continue
		}
		if best.ID == "" ||
			record.CreatedAt.After(best.CreatedAt) ||
			(record.CreatedAt.Equal(best.CreatedAt) && record.ID < best.ID) {
			best = record
		}
	}
	return best
}
