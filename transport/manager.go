// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vanvanhasnophi/a-final-work-sub000/lib/clock"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

// Envelope types understood by the Manager. Inbound frames with any
// other type are dropped.
const (
	envelopeAuth         = "auth"
	envelopePing         = "ping"
	envelopePong         = "pong"
	envelopeConnected    = "connected"
	envelopeNotification = "notification"
)

// envelope is the wire frame: one JSON object per line.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EventKind discriminates Manager events.
type EventKind int

const (
	// KindConnected reports that a connection was established (initial
	// or after reconnect).
	KindConnected EventKind = iota
	// KindDisconnected reports an abnormal close. Not emitted for
	// deliberate teardown via Connect or Close.
	KindDisconnected
	// KindNotification carries one pushed notification.
	KindNotification
)

// Event is delivered on the Manager's event channel.
type Event struct {
	Kind         EventKind
	Notification notification.Notification // set for KindNotification
}

// Defaults for Config fields left zero.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 5

	// eventBufferSize bounds the event channel. Overflow drops the
	// event with a warning; the fallback poller recovers the state.
	eventBufferSize = 64

	// maxFrameSize bounds a single inbound envelope line.
	maxFrameSize = 1 << 20
)

// Config holds configuration for creating a Manager.
type Config struct {
	// Dialer opens the underlying stream connection. Required.
	Dialer Dialer

	// Clock drives the heartbeat and reconnection timers. Nil means
	// the real clock.
	Clock clock.Clock

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger

	// HeartbeatInterval is the liveness ping period while connected.
	// Zero means DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// ReconnectDelay is the fixed wait between reconnection attempts.
	// Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts bounds consecutive reconnection attempts
	// after abnormal closes. Zero means DefaultMaxReconnectAttempts.
	// The counter resets only on an explicit Connect call.
	MaxReconnectAttempts int
}

// Manager owns the push channel connection lifecycle. It is safe for
// concurrent use. Create one per authenticated session and Close it on
// logout; the Manager is deliberately not a process-wide singleton.
type Manager struct {
	dialer            Dialer
	clock             clock.Clock
	logger            *slog.Logger
	heartbeatInterval time.Duration
	reconnectDelay    time.Duration
	maxReconnects     int

	events chan Event

	mu              sync.Mutex
	conn            net.Conn
	generation      int
	attempts        int
	token           string
	reconnectTimer  *clock.Timer
	heartbeatStop   chan struct{}
	heartbeatTicker *clock.Ticker
	closed          bool

	writeMu sync.Mutex
}

// New creates a Manager. No connection is made until Connect.
func New(cfg Config) (*Manager, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("transport: Dialer is required")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	maxReconnects := cfg.MaxReconnectAttempts
	if maxReconnects <= 0 {
		maxReconnects = DefaultMaxReconnectAttempts
	}

	return &Manager{
		dialer:            cfg.Dialer,
		clock:             c,
		logger:            logger,
		heartbeatInterval: heartbeat,
		reconnectDelay:    delay,
		maxReconnects:     maxReconnects,
		events:            make(chan Event, eventBufferSize),
	}, nil
}

// Events returns the channel carrying Manager events. The channel is
// closed by Close.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Connected reports whether a connection is currently live.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Connect establishes the push channel. Idempotent: an existing
// connection is torn down first (without a Disconnected event). The
// reconnection budget is reset. An empty token is an error — the
// caller logs it and relies on the fallback poller; it is not fatal to
// the rest of the system.
func (m *Manager) Connect(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return fmt.Errorf("transport: no session token available")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transport: manager is closed")
	}
	m.teardownLocked()
	m.token = sessionToken
	m.attempts = 0
	m.mu.Unlock()

	return m.dial(ctx)
}

// Close tears down the connection, cancels all timers, and closes the
// event channel. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.teardownLocked()
	m.mu.Unlock()

	close(m.events)
	return nil
}

// dial opens a connection with the stored token and starts the read
// and heartbeat loops. Emits KindConnected on success.
func (m *Manager) dial(ctx context.Context) error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, token)
	if err != nil {
		return fmt.Errorf("transport: dial: %w", err)
	}

	authData, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		conn.Close()
		return fmt.Errorf("transport: encoding auth envelope: %w", err)
	}
	if err := m.writeEnvelope(conn, envelope{Type: envelopeAuth, Data: authData}); err != nil {
		conn.Close()
		return fmt.Errorf("transport: sending auth envelope: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport: manager is closed")
	}
	m.conn = conn
	m.generation++
	generation := m.generation
	stop := make(chan struct{})
	m.heartbeatStop = stop
	ticker := m.clock.NewTicker(m.heartbeatInterval)
	m.heartbeatTicker = ticker
	m.mu.Unlock()

	go m.readLoop(conn, generation)
	go m.heartbeatLoop(conn, stop, ticker)

	m.logger.Info("transport: connected")
	m.emit(Event{Kind: KindConnected})
	return nil
}

// readLoop consumes inbound frames until the connection fails or is
// torn down.
func (m *Manager) readLoop(conn net.Conn, generation int) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	for scanner.Scan() {
		m.handleFrame(scanner.Bytes())
	}

	m.handleDisconnect(generation, scanner.Err())
}

// handleFrame decodes and dispatches one envelope. Malformed and
// unknown frames are dropped, never fatal.
func (m *Manager) handleFrame(line []byte) {
	var frame envelope
	if err := json.Unmarshal(line, &frame); err != nil {
		m.logger.Warn("transport: dropping malformed frame", "error", err)
		return
	}

	switch frame.Type {
	case envelopeConnected:
		m.logger.Debug("transport: server acknowledged connection")
	case envelopePong:
		// Heartbeat response. Absence of pongs is not failure — the
		// connection close is authoritative for failure detection.
	case envelopeNotification:
		var wire notification.Wire
		if err := json.Unmarshal(frame.Data, &wire); err != nil {
			m.logger.Warn("transport: dropping undecodable notification push", "error", err)
			return
		}
		record, err := wire.Canonical()
		if err != nil {
			m.logger.Warn("transport: dropping malformed notification push", "error", err)
			return
		}
		m.emit(Event{Kind: KindNotification, Notification: record})
	default:
		m.logger.Warn("transport: dropping unknown message type", "type", frame.Type)
	}
}

// handleDisconnect runs when the read loop exits. Deliberate teardown
// (Connect, Close) bumps the generation first, so only abnormal closes
// get here with a current generation.
func (m *Manager) handleDisconnect(generation int, readErr error) {
	m.mu.Lock()
	if m.closed || generation != m.generation {
		m.mu.Unlock()
		return
	}

	m.conn.Close()
	m.conn = nil
	m.generation++
	m.stopHeartbeatLocked()

	scheduled := m.attempts < m.maxReconnects
	if scheduled {
		m.attempts++
		attempt := m.attempts
		m.reconnectTimer = m.clock.AfterFunc(m.reconnectDelay, func() {
			go m.reconnect(attempt)
		})
	}
	attempts := m.attempts
	m.mu.Unlock()

	if scheduled {
		m.logger.Warn("transport: connection lost, reconnecting",
			"error", readErr,
			"attempt", attempts,
			"max_attempts", m.maxReconnects,
		)
	} else {
		m.logger.Warn("transport: connection lost, reconnection budget exhausted",
			"error", readErr,
			"attempts", attempts,
		)
	}
	m.emit(Event{Kind: KindDisconnected})
}

// reconnect is one timed reconnection attempt. A failed dial consumes
// another attempt from the budget; success does not restore it — only
// an explicit Connect resets the counter.
func (m *Manager) reconnect(attempt int) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	err := m.dial(context.Background())
	if err == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.attempts < m.maxReconnects {
		m.attempts++
		next := m.attempts
		m.reconnectTimer = m.clock.AfterFunc(m.reconnectDelay, func() {
			go m.reconnect(next)
		})
		m.mu.Unlock()
		m.logger.Warn("transport: reconnect failed, retrying",
			"error", err,
			"attempt", next,
			"max_attempts", m.maxReconnects,
		)
		return
	}
	m.mu.Unlock()
	m.logger.Warn("transport: reconnect failed, giving up until next connect",
		"error", err,
		"attempt", attempt,
	)
}

// heartbeatLoop pings on a fixed interval while the connection lives.
// Write failures are only logged; the read loop observes the close. The
// ticker is owned by the Manager and stopped during teardown.
func (m *Manager) heartbeatLoop(conn net.Conn, stop <-chan struct{}, ticker *clock.Ticker) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.writeEnvelope(conn, envelope{Type: envelopePing}); err != nil {
				m.logger.Debug("transport: heartbeat write failed", "error", err)
				return
			}
		}
	}
}

// teardownLocked closes the live connection and cancels timers without
// emitting events. Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.stopHeartbeatLocked()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.generation++
}

// stopHeartbeatLocked cancels the heartbeat ticker and signals the loop
// to exit. Caller holds m.mu.
func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatTicker != nil {
		m.heartbeatTicker.Stop()
		m.heartbeatTicker = nil
	}
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

// emit delivers an event without blocking. Drops (with a warning) when
// the consumer is not keeping up; the fallback poller restores any
// state a dropped push would have carried.
func (m *Manager) emit(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.events <- event:
	default:
		m.logger.Warn("transport: dropping event, consumer is slow", "kind", event.Kind)
	}
}

func (m *Manager) writeEnvelope(conn net.Conn, frame envelope) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err = conn.Write(data)
	return err
}
