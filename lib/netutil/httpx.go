// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading for the
// notification API client. All response bodies are JSON and small;
// the read bound only exists so a misbehaving server cannot exhaust
// client memory.
package netutil

import (
	"io"
)

// MaxResponseSize bounds API response body reads at 16 MB. A full
// notification page is a few kilobytes; the bound is generous enough
// to never matter in normal operation.
const MaxResponseSize int64 = 16 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll for HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
