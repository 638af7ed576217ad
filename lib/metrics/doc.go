// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines sensorlink's Prometheus collectors.
//
// One [Metrics] value is created per process and passed to the
// ingestion pipeline, poller, discovery scanner, and alert engine.
// Every method is safe on a nil *Metrics, so libraries and tests that
// do not care about metrics pass nil instead of a stub.
//
// [Metrics.Handler] serves the registry for the daemon's /metrics
// endpoint.
package metrics
