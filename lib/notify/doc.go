// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers alert events to people. [Ntfy] pushes to an
// ntfy server, [LogSink] writes events to a structured logger, and
// [Fanout] sends each event to several sinks.
//
// Every type here satisfies [alerting.Sink]. Delivery failures are
// returned to the caller, which for the alert engine means they are
// logged and otherwise ignored.
package notify
