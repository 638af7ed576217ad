// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package readingstore is the append-only store of sensor readings.
//
// Every reading receives an identifier from SQLite's AUTOINCREMENT
// sequence, which is strictly increasing and never reuses a value,
// even after a purge. [Store.AppendBatch] writes a whole batch inside
// a single IMMEDIATE transaction: SQLite holds its write lock for the
// duration, so no other writer's readings can be interleaved and the
// identifiers assigned to one batch are contiguous. Link ranges built
// from a batch rely on this.
//
// There is no update operation. Values are stored in a column without
// declared affinity so numeric readings stay REAL and decorated text
// readings ("232724 bytes") stay TEXT.
package readingstore
