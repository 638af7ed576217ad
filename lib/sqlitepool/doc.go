// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool that backs every
// sensorlink store.
//
// It wraps zombiezen.com/go/sqlite with one set of pragmas (WAL
// journal, NORMAL synchronous, a busy timeout so concurrent writers
// wait instead of failing with SQLITE_BUSY) and applies schema scripts
// once when the pool is opened. Stores receive the *Pool and write
// plain SQL against the zombiezen connection types; there is no query
// builder.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/sensorlink/sensorlink.db",
//	    Schema: []string{readingstore.Schema, linkindex.Schema},
//	    Logger: logger,
//	})
//
// Connections are not safe for concurrent use. Callers either Take and
// Put a connection themselves or use [Pool.Read] and [Pool.Write],
// which scope a connection (and for Write an IMMEDIATE transaction) to
// a callback.
package sqlitepool
