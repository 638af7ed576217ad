// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package alerting evaluates threshold rules against newly ingested
// readings.
//
// [Engine.Prepare] resolves the entries and rules for a request before
// the ingestion transaction opens, skipping unknown and inactive
// entries. [Plan.Evaluate] then runs inside the transaction and reads
// nothing but the cooldown [History]. For one (entry, sensor type,
// value, recorded_at) it selects the prepared rules whose scope
// matches the entry, drops rules
// still inside their per-(rule, entry) cooldown, extracts a numeric
// magnitude from the value, and tests the rule's condition. Every
// rule that fires produces a [sensor.AlertEvent] that is recorded in
// the [History] so later evaluations see the cooldown.
//
// Delivery is separate. [Engine.Dispatch] hands the events to the
// notification [Sink] after the ingestion transaction commits, so an
// alert is never sent for a value that failed to persist and a failed
// delivery never rolls back a write.
//
// Nothing in this package returns an error to the ingestion path:
// lookup failures, unparseable values, and sink failures are logged
// and the rule is skipped.
package alerting
