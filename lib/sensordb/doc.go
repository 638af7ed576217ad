// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sensordb opens the sensorlink database and wires the stores
// that share it.
//
// [Open] composes the schema scripts of every store package, opens one
// [sqlitepool.Pool], and builds the reading store, link index,
// catalog, alert engine, and ingest pipeline over it. Both binaries
// go through [Open] so they agree on the schema and on how the
// pipeline is assembled.
package sensordb
