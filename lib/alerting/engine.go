// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/metrics"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// EntryRepository answers questions about entries owned by the record
// management system.
type EntryRepository interface {
	// LookupEntry returns the entry's type and lifecycle. Unknown
	// entries return an error in the not_found category.
	LookupEntry(ctx context.Context, entryID int64) (sensor.EntryInfo, error)
}

// RuleSource supplies alert rules. It may return inactive or
// out-of-scope rules; the engine filters them.
type RuleSource interface {
	RulesForSensor(ctx context.Context, sensorType string) ([]sensor.AlertRule, error)
}

// Sink delivers alert events to people.
type Sink interface {
	Deliver(ctx context.Context, event sensor.AlertEvent) error
}

// Config holds the dependencies for New.
type Config struct {
	Entries EntryRepository
	Rules   RuleSource
	Sink    Sink
	Logger  *slog.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Engine evaluates alert rules and dispatches the resulting events.
type Engine struct {
	entries EntryRepository
	rules   RuleSource
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Entries == nil {
		return nil, fmt.Errorf("alert engine: Entries is required")
	}
	if cfg.Rules == nil {
		return nil, fmt.Errorf("alert engine: Rules is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("alert engine: Sink is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("alert engine: Logger is required")
	}
	return &Engine{
		entries: cfg.Entries,
		rules:   cfg.Rules,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Input is one value to evaluate for one entry.
type Input struct {
	EntryID    int64
	SensorType string
	Value      sensor.Value
	RecordedAt time.Time
}

// Plan holds the entries and rules resolved for one sensor type. It is
// built by [Engine.Prepare] before a write transaction opens, so
// evaluation inside the transaction touches only the cooldown history.
type Plan struct {
	engine     *Engine
	sensorType string
	entries    map[int64]sensor.EntryInfo
	rules      []sensor.AlertRule
}

// Prepare looks up each entry once and loads the rules for sensorType
// once. Unknown and inactive entries are left out of the plan, as are
// all entries when the rules cannot be loaded. It never fails.
func (e *Engine) Prepare(ctx context.Context, sensorType string, entryIDs []int64) *Plan {
	plan := &Plan{
		engine:     e,
		sensorType: sensorType,
		entries:    make(map[int64]sensor.EntryInfo, len(entryIDs)),
	}

	for _, entryID := range entryIDs {
		if _, seen := plan.entries[entryID]; seen {
			continue
		}
		logger := e.logger.With("entry_id", entryID, "sensor_type", sensorType)
		entry, err := e.entries.LookupEntry(ctx, entryID)
		if err != nil {
			if fault.Is(err, fault.CategoryNotFound) {
				logger.Debug("alert evaluation skipped: entry not found")
			} else {
				logger.Warn("alert evaluation skipped: entry lookup failed", "error", err)
				e.metrics.RuleEvaluated("error")
			}
			continue
		}
		if entry.Lifecycle != sensor.LifecycleActive {
			logger.Debug("alert evaluation skipped: entry inactive", "lifecycle", entry.Lifecycle)
			continue
		}
		plan.entries[entryID] = entry
	}
	if len(plan.entries) == 0 {
		return plan
	}

	rules, err := e.rules.RulesForSensor(ctx, sensorType)
	if err != nil {
		e.logger.Warn("alert evaluation skipped: loading rules failed", "sensor_type", sensorType, "error", err)
		e.metrics.RuleEvaluated("error")
		clear(plan.entries)
		return plan
	}
	for _, rule := range rules {
		if rule.Active && rule.SensorType == sensorType {
			plan.rules = append(plan.rules, rule)
		}
	}
	return plan
}

// Evaluate returns the events fired by in and records each of them in
// history. Inputs for another sensor type or for an entry missing from
// the plan fire nothing. Problems are logged and the affected rule is
// skipped.
func (plan *Plan) Evaluate(history History, in Input) []sensor.AlertEvent {
	if in.SensorType != plan.sensorType {
		return nil
	}
	entry, ok := plan.entries[in.EntryID]
	if !ok {
		return nil
	}

	e := plan.engine
	logger := e.logger.With("entry_id", in.EntryID, "sensor_type", in.SensorType)
	var fired []sensor.AlertEvent
	for _, rule := range plan.rules {
		if !InScope(rule, entry) {
			continue
		}
		event, outcome := e.evaluateRule(history, rule, in, logger)
		e.metrics.RuleEvaluated(outcome)
		if outcome == "fired" {
			fired = append(fired, event)
		}
	}
	return fired
}

// Evaluate prepares a plan for a single input and evaluates it. Batch
// callers holding a write connection use [Engine.Prepare] instead.
func (e *Engine) Evaluate(ctx context.Context, history History, in Input) []sensor.AlertEvent {
	return e.Prepare(ctx, in.SensorType, []int64{in.EntryID}).Evaluate(history, in)
}

func (e *Engine) evaluateRule(history History, rule sensor.AlertRule, in Input, logger *slog.Logger) (sensor.AlertEvent, string) {
	logger = logger.With("rule_id", rule.ID)

	last, ok, err := history.LastTriggered(rule.ID, in.EntryID)
	if err != nil {
		logger.Warn("rule skipped: reading cooldown history failed", "error", err)
		return sensor.AlertEvent{}, "error"
	}
	if ok && in.RecordedAt.Sub(last) < rule.Cooldown {
		logger.Debug("rule skipped: cooldown active", "last_triggered", last, "cooldown", rule.Cooldown)
		return sensor.AlertEvent{}, "cooldown"
	}

	value, numeric := Numeric(in.Value)
	if !numeric {
		logger.Debug("rule skipped: value is not numeric", "value", in.Value.String())
		return sensor.AlertEvent{}, "non_numeric"
	}

	matched, evaluable := Satisfied(rule, value)
	if !evaluable {
		logger.Warn("rule skipped: condition cannot be evaluated",
			"condition", rule.Condition,
			"has_secondary", rule.ThresholdSecondary != nil,
		)
		return sensor.AlertEvent{}, "error"
	}
	if !matched {
		return sensor.AlertEvent{}, "not_matched"
	}

	event := sensor.AlertEvent{
		RuleID:      rule.ID,
		EntryID:     in.EntryID,
		SensorType:  in.SensorType,
		Value:       in.Value,
		TriggeredAt: in.RecordedAt,
		Priority:    rule.Priority,
		Title:       rule.Title,
		Message:     rule.Message,
	}
	if err := history.Record(event); err != nil {
		logger.Warn("rule skipped: recording alert event failed", "error", err)
		return sensor.AlertEvent{}, "error"
	}

	logger.Info("alert triggered",
		"value", in.Value.String(),
		"condition", rule.Condition,
		"threshold", rule.Threshold,
		"priority", rule.Priority,
	)
	e.metrics.AlertTriggered(string(rule.Priority))
	return event, "fired"
}

// Dispatch delivers events to the sink in order and returns how many
// were delivered. Failures are logged and do not stop later events.
func (e *Engine) Dispatch(ctx context.Context, events []sensor.AlertEvent) int {
	delivered := 0
	for _, event := range events {
		if err := e.sink.Deliver(ctx, event); err != nil {
			e.logger.Error("alert delivery failed",
				"rule_id", event.RuleID,
				"entry_id", event.EntryID,
				"sensor_type", event.SensorType,
				"error", err,
			)
			e.metrics.AlertDelivered(false)
			continue
		}
		e.metrics.AlertDelivered(true)
		delivered++
	}
	return delivered
}
