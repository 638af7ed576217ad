// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package linkindex associates entries with spans of the reading
// stream.
//
// A link range (entry, sensor type, start, end, link kind) stands for
// every reading whose identifier lies in [start, end] and whose sensor
// type matches. Ranges are shared, not owned: the same reading can sit
// inside ranges of many entries, and nothing is copied per entry.
// Multiple ranges may exist for one (entry, sensor type) pair, may
// overlap, and are compacted by [Index.Optimize].
//
// [Index.Link] verifies that the identifiers it is given are
// contiguous and that every identifier in the resulting span names an
// existing reading of the range's sensor type. Together with the
// reading store's single-transaction batch append this guarantees a
// range never silently covers another writer's readings.
//
// Operations that must share a transaction with other writes (the
// ingestion pipeline links and evaluates alerts in one unit) use the
// Tx variants, which take the caller's connection.
package linkindex
