// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source injected into sensorlink's
// stores, poller, and alert engine.
//
// Ingestion stamps readings without an explicit recorded_at with
// Clock.Now, the poller drives its cycle from Clock.NewTicker, and
// the notification sink waits out rate limits with Clock.After. Tests
// substitute a FakeClock so cooldown windows and polling intervals
// can be crossed without sleeping:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	scheduler.Start(ctx)
//	c.WaitForTimers(1)          // scheduler registered its ticker
//	c.Advance(30 * time.Second) // deliver one tick
//
// WaitForTimers closes the race between a goroutine registering a
// ticker and the test advancing time.
package clock
