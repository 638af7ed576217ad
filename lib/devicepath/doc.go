// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package devicepath resolves field-mapping path expressions against
// device payloads.
//
// A path is dot-separated keys, each optionally followed by array
// indexes: "sensor.readings[0].value", "channels[2][1]". [Parse]
// turns the expression into a sequence of key and index steps once, at
// configuration time, so malformed expressions are rejected there and
// never at poll time.
//
// Payloads are decoded into [Value], a tagged union of Object, Array,
// Scalar, and Missing. [Resolve] never fails: a missing key, an index
// out of range, or a step applied to the wrong kind of value yields a
// Missing value, which is how "not found" is reported.
//
// [Leaves] enumerates every scalar leaf of a payload with a sample and
// an inferred unit; operators use it to author mappings for a new
// device.
package devicepath
