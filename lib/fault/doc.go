// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault classifies sensorlink errors so that callers can make
// decisions (reject input, retry on the next cycle, report corruption)
// without parsing message text.
//
// A [*Error] wraps an ordinary error and adds a [Category]. Use the
// category constructors ([Validation], [NotFound], [TransientNetwork],
// [DataIntegrity], [Internal]) rather than building Error values
// directly, and [CategoryOf] or [Is] to inspect an error chain.
//
// This package depends on no other sensorlink packages.
package fault
