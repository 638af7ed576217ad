// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sensor defines the data model shared by the sensorlink
// ingestion, linking, polling, and alerting packages: readings and
// their values, link ranges, devices and field mappings, alert rules,
// and the alert events emitted when a rule fires.
//
// Readings are immutable once written and are owned by the reading
// store. A [LinkRange] associates an entry with a contiguous span of
// reading identifiers of one sensor type; many entries may reference
// the same reading through overlapping ranges.
//
// The types carry JSON tags for the HTTP API and CLI output. Metadata
// maps are stored as CBOR blobs (see lib/codec) and therefore must
// contain only CBOR-encodable values.
package sensor
