// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the records sensorlink consumes but does not
// own: entries and their lifecycle, alert rules, and the device
// registry (devices, field mappings, device-to-entry associations).
//
// A [Catalog] implements the lookups the rest of the system depends
// on: [alerting.EntryRepository] and [alerting.RuleSource] for the
// alert engine, and the registry interface used by the device poller.
// Poll outcomes are written back through RecordPollSuccess and
// RecordPollFailure, which are the only writers of device status.
//
// Device configuration can be loaded in bulk from a JSONC manifest
// (JSON with comments and trailing commas); see [ParseManifest].
//
// All tables live in the shared sensorlink database and are created
// by [Schema].
package catalog
