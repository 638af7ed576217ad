// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for sensorlink
// packages.
//
// [OpenPool] opens a SQLite pool in t.TempDir with the given schema
// scripts and closes it when the test ends. [Logger] returns a logger
// whose output goes through t.Log, so it only shows for failing or
// verbose tests. [RequireReceive] and [RequireClosed] wrap the select
// with a wall-clock fallback that keeps a broken test from hanging;
// they are the only place tests use real timeouts.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
