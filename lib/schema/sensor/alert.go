// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"fmt"
	"time"
)

// Condition is the comparison an alert rule applies to a numeric value.
type Condition string

const (
	ConditionGreater Condition = "gt"
	ConditionLess    Condition = "lt"
	ConditionEqual   Condition = "eq"
	ConditionBetween Condition = "between"
)

// ParseCondition accepts the short forms and the long forms used by
// older rule definitions (greater_than, less_than, equals).
func ParseCondition(s string) (Condition, error) {
	switch s {
	case "gt", "greater_than":
		return ConditionGreater, nil
	case "lt", "less_than":
		return ConditionLess, nil
	case "eq", "equals":
		return ConditionEqual, nil
	case "between":
		return ConditionBetween, nil
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

// Priority is the urgency attached to an alert.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// RuleScope narrows a rule to one entry, one entry type, or both.
// Zero fields match everything.
type RuleScope struct {
	EntryID     int64 `json:"entry_id,omitempty"`
	EntryTypeID int64 `json:"entry_type_id,omitempty"`
}

// AlertRule is a threshold rule evaluated against each ingested value
// of SensorType. Rules are managed outside sensorlink and consumed
// read-only.
type AlertRule struct {
	ID                 int64         `json:"id"`
	SensorType         string        `json:"sensor_type"`
	Scope              RuleScope     `json:"scope"`
	Condition          Condition     `json:"condition"`
	Threshold          float64       `json:"threshold"`
	ThresholdSecondary *float64      `json:"threshold_secondary,omitempty"`
	Cooldown           time.Duration `json:"cooldown"`
	Priority           Priority      `json:"priority"`
	Active             bool          `json:"is_active"`
	Title              string        `json:"title,omitempty"`
	Message            string        `json:"message,omitempty"`
}

// AlertEvent is emitted when a rule fires for an entry. TriggeredAt is
// the recorded_at of the reading that satisfied the rule.
type AlertEvent struct {
	RuleID      int64     `json:"rule_id"`
	EntryID     int64     `json:"entry_id"`
	SensorType  string    `json:"sensor_type"`
	Value       Value     `json:"value"`
	TriggeredAt time.Time `json:"triggered_at"`
	Priority    Priority  `json:"priority,omitempty"`
	Title       string    `json:"title,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Lifecycle is the coarse state category of an entry.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
)

// EntryInfo is what the core needs to know about an entry.
type EntryInfo struct {
	ID        int64     `json:"id"`
	TypeID    int64     `json:"type_id,omitempty"`
	Lifecycle Lifecycle `json:"lifecycle"`
}
