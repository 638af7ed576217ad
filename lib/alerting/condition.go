// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package alerting

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// EqualTolerance is the absolute difference under which an eq rule
// considers a value equal to its threshold.
const EqualTolerance = 0.01

var leadingNumber = regexp.MustCompile(`^\s*[+-]?\d+(\.\d+)?`)

// Numeric extracts a magnitude from a reading value. Numeric values
// are used as-is. Text values contribute their leading signed decimal
// token, so "232724 bytes" yields 232724 and "-3.5°C" yields -3.5.
// Text without a leading number reports false.
func Numeric(value sensor.Value) (float64, bool) {
	if number, ok := value.Float(); ok {
		return number, !math.IsNaN(number)
	}
	token := leadingNumber.FindString(value.String())
	if token == "" {
		return 0, false
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return 0, false
	}
	return number, true
}

// Satisfied reports whether value meets the rule's condition. The
// second result is false when the rule cannot be evaluated: an unknown
// condition, or between without a secondary threshold.
func Satisfied(rule sensor.AlertRule, value float64) (matched, evaluable bool) {
	switch rule.Condition {
	case sensor.ConditionGreater:
		return value > rule.Threshold, true
	case sensor.ConditionLess:
		return value < rule.Threshold, true
	case sensor.ConditionEqual:
		return math.Abs(value-rule.Threshold) < EqualTolerance, true
	case sensor.ConditionBetween:
		if rule.ThresholdSecondary == nil {
			return false, false
		}
		low := min(rule.Threshold, *rule.ThresholdSecondary)
		high := max(rule.Threshold, *rule.ThresholdSecondary)
		return value >= low && value <= high, true
	}
	return false, false
}

// InScope reports whether rule applies to entry. Zero scope fields
// match any entry.
func InScope(rule sensor.AlertRule, entry sensor.EntryInfo) bool {
	if rule.Scope.EntryID != 0 && rule.Scope.EntryID != entry.ID {
		return false
	}
	if rule.Scope.EntryTypeID != 0 && rule.Scope.EntryTypeID != entry.TypeID {
		return false
	}
	return true
}
