// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest is the write path for sensor readings.
//
// [Pipeline.Ingest] takes one batch of values for one sensor type and
// a list of target entries, and:
//
//  1. appends the values to the reading store in one transaction,
//     which assigns a contiguous block of identifiers;
//  2. in a second transaction, creates one link range per entry over
//     that block and evaluates alert rules for every (reading, entry)
//     pair, recording fired events for cooldown tracking;
//  3. after the second transaction commits, dispatches the fired
//     events to the notification sink and notifies observers (the
//     InfluxDB mirror).
//
// A pipeline-wide mutex serializes steps 1 and 2 across callers, so
// the poller and API requests never interleave identifier blocks.
//
// If step 2 fails the appended readings stay in the store: readings
// are append-only, and removing them would be a mutation. Such
// readings are simply not linked to any entry. Alert evaluation never
// fails an ingest; delivery happens only for events whose transaction
// committed.
package ingest
