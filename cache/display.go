// Copyright 2026 The RoomX Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Display records count banner impressions per notification per
// calendar day. The day is a "YYYY-MM-DD" string in the engine's
// configured location; lexicographic order on that format matches
// chronological order, which PruneDisplay relies on.

// DisplayCount returns the number of banner impressions recorded for
// (id, day). Zero when no record exists.
func (s *Store) DisplayCount(ctx context.Context, id, day string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	count := 0
	err = sqlitex.Execute(conn, `SELECT count FROM display WHERE id = ? AND day = ?`, &sqlitex.ExecOptions{
		Args: []any{id, day},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("cache: display count %s/%s: %w", id, day, err)
	}
	return count, nil
}

// IncrementDisplay adds one impression for (id, day) and returns the
// new count. The counter only ever grows within a day.
func (s *Store) IncrementDisplay(ctx context.Context, id, day string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	count := 0
	err = sqlitex.Execute(conn,
		`INSERT INTO display (id, day, count) VALUES (?, ?, 1)
		 ON CONFLICT (id, day) DO UPDATE SET count = count + 1
		 RETURNING count`,
		&sqlitex.ExecOptions{
			Args: []any{id, day},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("cache: incrementing display %s/%s: %w", id, day, err)
	}
	return count, nil
}

// PruneDisplay deletes every display record older than cutoffDay
// (exclusive) and returns the number removed. Display records are
// pruned independently of notification lifecycle.
func (s *Store) PruneDisplay(ctx context.Context, cutoffDay string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM display WHERE day < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoffDay}})
	if err != nil {
		return 0, fmt.Errorf("cache: pruning display records: %w", err)
	}
	return conn.Changes(), nil
}
