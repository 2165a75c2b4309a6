// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache is the persistent local store for client-only state:
// the locally-originated notification list (e.g. the weak password
// warning synthesized at login) and the per-notification-per-day
// banner impression counters used by the display policy. It exposes a
// namespaced key/value contract plus typed accessors for exactly those
// two records, so serialization and error handling live in one place
// instead of leaking into call sites.
//
// Values are CBOR-encoded (lib/codec) and stored in SQLite
// (lib/localdb). All methods are safe for concurrent use, but callers
// that must not lose updates (the reconciliation engine and the
// display policy) serialize their cache access behind their own
// mutation lock.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vanvanhasnophi/a-final-work-sub000/lib/codec"
	"github.com/vanvanhasnophi/a-final-work-sub000/lib/localdb"
	"github.com/vanvanhasnophi/a-final-work-sub000/notification"
)

// namespaceLocal holds the local-only notification list, keyed by
// notification ID.
const namespaceLocal = "notifications.local"

// Config holds the parameters for opening the cache.
type Config struct {
	// Path is the SQLite database file, or ":memory:" for tests.
	Path string

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger
}

// Store is the local cache. Open creates the schema on first use.
type Store struct {
	pool   *localdb.Pool
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE TABLE IF NOT EXISTS display (
	id    TEXT NOT NULL,
	day   TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (id, day)
);
`

// Open opens (creating if needed) the cache database.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := localdb.Open(localdb.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecScript(conn, schema)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Get reads the value stored under (namespace, key) into out. The
// boolean reports whether the key was present.
func (s *Store) Get(ctx context.Context, namespace, key string, out any) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn, `SELECT value FROM kv WHERE namespace = ? AND key = ?`, &sqlitex.ExecOptions{
		Args: []any{namespace, key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			raw := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, raw)
			return codec.Unmarshal(raw, out)
		},
	})
	if err != nil {
		return false, fmt.Errorf("cache: get %s/%s: %w", namespace, key, err)
	}
	return found, nil
}

// Set stores value under (namespace, key), replacing any previous
// value.
func (s *Store) Set(ctx context.Context, namespace, key string, value any) error {
	raw, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encoding %s/%s: %w", namespace, key, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{namespace, key, raw}})
	if err != nil {
		return fmt.Errorf("cache: set %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Remove deletes (namespace, key). Removing an absent key is not an
// error.
func (s *Store) Remove(ctx context.Context, namespace, key string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM kv WHERE namespace = ? AND key = ?`,
		&sqlitex.ExecOptions{Args: []any{namespace, key}})
	if err != nil {
		return fmt.Errorf("cache: remove %s/%s: %w", namespace, key, err)
	}
	return nil
}

// LocalNotifications returns every locally-originated notification in
// the cache, in unspecified order (the engine orders the reconciled
// set itself).
func (s *Store) LocalNotifications(ctx context.Context) ([]notification.Notification, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []notification.Notification
	err = sqlitex.Execute(conn, `SELECT value FROM kv WHERE namespace = ?`, &sqlitex.ExecOptions{
		Args: []any{namespaceLocal},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raw := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, raw)
			var record notification.Notification
			if err := codec.Unmarshal(raw, &record); err != nil {
				// A corrupt record must not poison the whole list.
				s.logger.Warn("cache: dropping undecodable local notification", "error", err)
				return nil
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: listing local notifications: %w", err)
	}
	return records, nil
}

// PutLocal stores (or replaces) one local notification.
func (s *Store) PutLocal(ctx context.Context, record notification.Notification) error {
	if record.ID == "" {
		return fmt.Errorf("cache: local notification has no ID")
	}
	return s.Set(ctx, namespaceLocal, record.ID, record)
}

// RemoveLocal deletes one local notification by ID.
func (s *Store) RemoveLocal(ctx context.Context, id string) error {
	return s.Remove(ctx, namespaceLocal, id)
}

// ClearLocal deletes the entire local notification list.
func (s *Store) ClearLocal(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM kv WHERE namespace = ?`,
		&sqlitex.ExecOptions{Args: []any{namespaceLocal}})
	if err != nil {
		return fmt.Errorf("cache: clearing local notifications: %w", err)
	}
	return nil
}
