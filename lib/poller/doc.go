// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller collects telemetry from network devices.
//
// A [Scheduler] owns one background loop. On every tick it selects
// the devices that are due (polling enabled, not disabled, and either
// never polled or at least one polling interval since the last
// success) and polls them one at a time: fetch the payload, resolve
// each enabled field mapping with [devicepath], and hand every found
// value to the ingest pipeline for all entries linked to the device.
// A failed fetch marks the device offline and records the error; it
// never stops the cycle. Stop is cooperative and is checked between
// devices, never in the middle of a request.
//
// [Discovery] is a separate one-shot scan of an IPv4 range. It probes
// every host address with a bounded number of requests in flight and
// reports the compatible devices it found. It does not register
// anything or touch polling schedules.
package poller
