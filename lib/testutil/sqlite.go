// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// OpenPool opens a pool on a fresh database file and applies schema.
func OpenPool(t *testing.T, schema ...string) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "sensorlink.db"),
		PoolSize: 4,
		Schema:   schema,
	})
	if err != nil {
		t.Fatalf("sqlitepool.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("pool.Close: %v", err)
		}
	})
	return pool
}

// Exec runs a statement outside any store, for seeding fixtures.
func Exec(t *testing.T, pool *sqlitepool.Pool, statement string, args ...any) {
	t.Helper()
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{Args: args})
	})
	if err != nil {
		t.Fatalf("exec %q: %v", statement, err)
	}
}

// Count runs a single-integer query.
func Count(t *testing.T, pool *sqlitepool.Pool, statement string, args ...any) int64 {
	t.Helper()
	var count int64
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		var err error
		count, err = sqlitepool.QueryInt64(conn, statement, args...)
		return err
	})
	if err != nil {
		t.Fatalf("count %q: %v", statement, err)
	}
	return count
}
