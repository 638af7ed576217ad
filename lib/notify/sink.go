// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// LogSink writes each event to a logger at warn level.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver logs the event. It never fails.
func (s LogSink) Deliver(_ context.Context, event sensor.AlertEvent) error {
	s.Logger.Warn("alert triggered",
		"rule_id", event.RuleID,
		"entry_id", event.EntryID,
		"sensor_type", event.SensorType,
		"value", event.Value.String(),
		"priority", string(event.Priority),
		"title", Title(event),
		"triggered_at", event.TriggeredAt,
	)
	return nil
}

// Fanout delivers each event to every sink in order. One sink failing
// does not stop delivery to the rest; the failures are joined.
type Fanout []alerting.Sink

// Deliver implements [alerting.Sink].
func (f Fanout) Deliver(ctx context.Context, event sensor.AlertEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Deliver(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
