// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport maintains the realtime push channel that delivers
// notifications without polling. A Manager owns at most one live
// connection per authenticated session and surfaces three event kinds
// to the reconciliation engine: connected, disconnected, and pushed
// notification.
//
// The wire protocol is newline-delimited JSON envelopes {type, data}
// over a stream connection obtained from a Dialer. The Manager sends
// an auth envelope after dialing, pings on a fixed heartbeat interval
// while connected, and treats any read failure while running as an
// abnormal close. Abnormal closes schedule reconnection with a fixed
// delay and a hard attempt bound; once the bound is exhausted the
// Manager stays disconnected until the next explicit Connect (the next
// login). Push delivery is best-effort by design — the fallback poller
// covers silent loss, so the Manager never blocks on a slow consumer.
//
// Unknown envelope types are logged and dropped; a malformed frame
// never terminates the connection or the read loop.
package transport
