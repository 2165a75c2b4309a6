// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Dialer = (*TCPDialer)(nil)
	_ Dialer = (DialerFunc)(nil)
)

// Dialer opens the stream connection carrying the push channel. The
// session token is available to dialers that authenticate during
// connection establishment (e.g. a token query parameter); the Manager
// additionally sends an auth envelope as the first frame, so stream
// dialers may ignore it.
type Dialer interface {
	Dial(ctx context.Context, sessionToken string) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, sessionToken string) (net.Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, sessionToken string) (net.Conn, error) {
	return f(ctx, sessionToken)
}

// TCPDialer connects to the notification gateway over TCP.
type TCPDialer struct {
	// Address is the gateway in "host:port" form.
	Address string

	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// Dial implements Dialer. Authentication happens via the Manager's
// auth envelope, so the token is unused here.
func (d *TCPDialer) Dial(ctx context.Context, _ string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", d.Address)
}
