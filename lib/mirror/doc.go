// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror copies committed readings into InfluxDB for
// dashboards. The SQLite reading store stays the system of record;
// the mirror is best-effort and a failed write is logged and dropped.
//
// [Mirror] implements the ingest observer interface, so the daemon
// registers it with the pipeline when a mirror section is configured.
package mirror
