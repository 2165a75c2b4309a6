// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package localdb opens the client-side SQLite database backing the
// notification cache. It wraps sqlitex.Pool with the standard pragmas
// (WAL, busy timeout) and a per-connection schema hook.
package localdb

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening the database. Path is
// required; everything else has defaults.
type Config struct {
	// Path is the database file. The parent directory must exist; the
	// file is created on first open. ":memory:" gives an in-memory
	// database (pool size is forced to 1 — each in-memory connection
	// would otherwise see its own empty database).
	Path string

	// PoolSize is the number of pooled connections. Zero or negative
	// defaults to 2: the cache is written by one serialized owner and
	// occasionally read concurrently, so a large pool buys nothing.
	PoolSize int

	// Logger receives open/close messages. Nil discards them.
	Logger *slog.Logger

	// OnConnect runs once per connection after the standard pragmas,
	// typically to create the schema.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of SQLite connections. Pool is safe for
// concurrent use; individual connections are not — Take a connection
// per goroutine and Put it back when done.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the pool, applying pragmas and the OnConnect hook to
// every connection lazily on first Take. The caller must Close the
// pool when done.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("localdb: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}
	uri := cfg.Path
	if cfg.Path == ":memory:" {
		poolSize = 1
		// sqlitex.NewPool rejects the bare ":memory:" string and
		// requires the URI form for in-memory databases.
		uri = "file::memory:?mode=memory&cache=shared"
	}

	inner, err := sqlitex.NewPool(uri, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("localdb: opening %s: %w", cfg.Path, err)
	}

	logger.Info("local database opened", "path", cfg.Path, "pool_size", poolSize)

	return &Pool{inner: inner, logger: logger, path: cfg.Path}, nil
}

// Take borrows a connection, blocking until one is available or ctx is
// cancelled. Pair every Take with a deferred Put.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("localdb: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Safe to call with nil.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes all connections. Blocks until borrowed connections are
// returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("localdb: closing %s: %w", p.path, err)
	}
	p.logger.Info("local database closed", "path", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("localdb: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("localdb: OnConnect: %w", err)
		}
	}
	return nil
}
