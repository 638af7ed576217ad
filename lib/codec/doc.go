// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides sensorlink's CBOR configuration and the
// metadata helpers built on it.
//
// sensorlink uses JSON at its edges (device payloads, the HTTP API,
// CLI output, JSONC manifests) and CBOR for free-form metadata stored
// in SQLite: reading metadata and link range metadata are persisted as
// CBOR blobs so that numbers keep their type and the schema never has
// to know their shape.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys and smallest integer encoding, so the same metadata always
// produces the same bytes. The decoder maps CBOR maps to
// map[string]any so decoded metadata can be re-encoded as JSON
// without conversion.
//
//	blob, err := codec.EncodeMetadata(map[string]any{"unit": "°C"})
//	metadata, err := codec.DecodeMetadata(blob)
//
// [MergeMetadata] implements the union used when link ranges are
// merged.
package codec
