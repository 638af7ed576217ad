// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Sensorlink is the operator CLI. It opens the same SQLite database
// as sensorlink-daemon (SQLite allows concurrent processes) and works
// on it directly: scanning networks for devices, inspecting payload
// paths for mapping, listing devices, reading and compacting an
// entry's linked readings, importing manifests, and running a single
// poll cycle.
//
// Every command takes --config (default $SENSORLINK_CONFIG) and most
// take --json for machine-readable output.
package main
