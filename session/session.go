// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package session assembles the notification stack for one
// authenticated user: local cache, server client, display policy,
// reconciliation engine, fallback poller, and (when a gateway is
// configured) the realtime transport. Start wires them together at
// login; Close tears them down at logout. Nothing here is a process
// singleton — two sessions never share state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vanvanhasnophi/a-final-work-sub000/cache"
	"github.com/vanvanhasnophi/a-final-work-sub000/config"
	"github.com/vanvanhasnophi/a-final-work-sub000/engine"
	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
	"github.com/vanvanhasnophi/a-final-work-sub000/policy"
	"github.com/vanvanhasnophi/a-final-work-sub000/poller"
	"github.com/vanvanhasnophi/a-final-work-sub000/source"
	"github.com/vanvanhasnophi/a-final-work-sub000/transport"
)

// Params describes one login.
type Params struct {
	// Config is the validated client configuration. Required.
	Config config.Config

	// UserID identifies the authenticated user. Required.
	UserID string

	// Token is the session bearer token. Required.
	Token string

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// Clock drives every timer in the stack. Nil means the real clock.
	Clock clock.Clock

	// HTTPClient overrides the client used against the server API.
	// Nil means http.DefaultClient.
	HTTPClient *http.Client

	// Dialer overrides the push channel dialer. Nil uses a TCP dialer
	// against Config.Gateway; with an empty Gateway the realtime
	// channel is disabled entirely.
	Dialer transport.Dialer

	// Subscribe, when set, is called with the engine's topics before
	// any events flow, so the first snapshot is never missed.
	Subscribe func(*engine.Events)

	// WeakPassword marks that the login response flagged the account
	// password; the session synthesizes the local warning notification.
	WeakPassword bool
}

// Session is one user's running notification stack.
type Session struct {
	logger  *slog.Logger
	store   *cache.Store
	client  *source.Client
	engine  *engine.Engine
	poller  *poller.Poller
	manager *transport.Manager // nil when the realtime channel is disabled

	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error
}

// Start builds and starts the stack. On error nothing keeps running.
func Start(ctx context.Context, p Params) (*Session, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("session: UserID is required")
	}
	if p.Token == "" {
		return nil, fmt.Errorf("session: Token is required")
	}
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := p.Clock
	if c == nil {
		c = clock.Real()
	}

	cachePath := p.Config.CachePath
	if cachePath == "" {
		cachePath = ":memory:"
	}
	store, err := cache.Open(cache.Config{Path: cachePath, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	fail := func(err error) (*Session, error) {
		store.Close()
		return nil, err
	}

	client, err := source.NewClient(source.ClientConfig{
		BaseURL:      p.Config.Server,
		HTTPClient:   p.HTTPClient,
		Logger:       logger,
		SessionToken: p.Token,
	})
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}

	gate, err := policy.New(policy.Config{
		Store:             store,
		Clock:             c,
		Logger:            logger,
		MaxDisplaysPerDay: p.Config.Display.MaxPerDay,
		StalenessWindow:   p.Config.Display.Staleness,
		SuppressionWindow: p.Config.Display.Suppression,
		RetentionDays:     p.Config.Display.RetentionDays,
	})
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}

	eng, err := engine.New(engine.Config{
		Source:           client,
		Local:            store,
		UserID:           p.UserID,
		Authorizer:       gate,
		Clock:            c,
		Logger:           logger,
		DebounceInterval: p.Config.UnreadDebounce,
	})
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}

	poll, err := poller.New(poller.Config{
		Source:   client,
		UserID:   p.UserID,
		Clock:    c,
		Logger:   logger,
		Interval: p.Config.Poll.Interval,
		PageSize: p.Config.Poll.PageSize,
	})
	if err != nil {
		return fail(fmt.Errorf("session: %w", err))
	}

	s := &Session{
		logger: logger,
		store:  store,
		client: client,
		engine: eng,
		poller: poll,
	}

	if p.Subscribe != nil {
		p.Subscribe(eng.Events())
	}

	// Any connectivity flip triggers an out-of-band poll: on loss to
	// shorten the staleness window, on recovery to catch up on pushes
	// missed while down.
	s.unsubscribe = eng.Events().TransportState.Subscribe(func(bool) {
		poll.Refresh()
	})

	dialer := p.Dialer
	if dialer == nil && p.Config.Gateway != "" {
		dialer = &transport.TCPDialer{
			Address: p.Config.Gateway,
			Timeout: p.Config.Transport.DialTimeout,
		}
	}

	var transportEvents <-chan transport.Event
	if dialer != nil {
		manager, err := transport.New(transport.Config{
			Dialer:               dialer,
			Clock:                c,
			Logger:               logger,
			HeartbeatInterval:    p.Config.Transport.HeartbeatInterval,
			ReconnectDelay:       p.Config.Transport.ReconnectDelay,
			MaxReconnectAttempts: p.Config.Transport.MaxReconnectAttempts,
		})
		if err != nil {
			return fail(fmt.Errorf("session: %w", err))
		}
		s.manager = manager
		transportEvents = manager.Events()

		// A dead push channel is degraded service, not a failed login:
		// the poller keeps the session converging.
		if err := manager.Connect(ctx, p.Token); err != nil {
			logger.Warn("session: push channel unavailable, relying on polling", "error", err)
		}
	}

	eng.Consume(transportEvents, poll.Snapshots())

	if p.WeakPassword {
		if _, err := eng.AddLocal(ctx,
			"Weak password",
			"Your password does not meet the current strength requirements. Please change it.",
			notification.TypeSecurity,
			notification.PriorityHigh,
		); err != nil {
			logger.Warn("session: adding weak password warning failed", "error", err)
		}
	}

	poll.Run()
	return s, nil
}

// Engine exposes the reconciliation engine for queries and mutations.
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// Events exposes the outbound topics.
func (s *Session) Events() *engine.Events {
	return s.engine.Events()
}

// Refresh requests an immediate poll.
func (s *Session) Refresh() {
	s.poller.Refresh()
}

// Close tears the stack down: transport first so no more events are
// produced, then the poller, then the engine (which waits for in-flight
// server mutations), then the cache. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.manager != nil {
			s.manager.Close()
		}
		s.poller.Stop()
		s.unsubscribe()
		s.engine.Stop()
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}
