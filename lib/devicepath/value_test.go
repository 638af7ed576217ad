// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devicepath

import (
	"testing"
)

const fermenterPayload = `{
	"device_id": "esp32-fermenter-01",
	"system": {"free_heap": 12345, "uptime_ms": 86400000, "uptime_formatted": "1d 0h"},
	"sensor": {
		"temperature": 18.75,
		"valid": true,
		"readings": [{"value": 18.5}, {"value": 18.75}],
		"probe": null
	},
	"network": {"rssi": -61, "ip_address": "192.168.1.40"}
}`

func mustParseJSON(t *testing.T, document string) Value {
	t.Helper()
	value, err := ParseJSON([]byte(document))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	return value
}

func TestResolveFound(t *testing.T) {
	payload := mustParseJSON(t, fermenterPayload)

	tests := []struct {
		expression string
		want       string
		numeric    bool
	}{
		{"system.free_heap", "12345", true},
		{"sensor.readings[1].value", "18.75", true},
		{"network.rssi", "-61", true},
		{"network.ip_address", "192.168.1.40", false},
		{"sensor.valid", "true", false},
	}
	for _, test := range tests {
		value := Resolve(payload, MustParse(test.expression))
		reading, ok := value.ReadingValue()
		if !ok {
			t.Errorf("%s: not found", test.expression)
			continue
		}
		if reading.String() != test.want || reading.IsNumeric() != test.numeric {
			t.Errorf("%s = %v (numeric %v), want %s (numeric %v)",
				test.expression, reading, reading.IsNumeric(), test.want, test.numeric)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	payload := mustParseJSON(t, fermenterPayload)

	for _, expression := range []string{
		"system.missing",
		"sensor.readings[2].value",
		"sensor.temperature.value",
		"system[0]",
		"sensor.readings.value",
		"absent.deeply.nested[3]",
	} {
		if value := Resolve(payload, MustParse(expression)); value.Found() {
			t.Errorf("%s resolved to %v, want missing", expression, value.Kind())
		}
	}

	for _, expression := range []string{"sensor.probe", "sensor", "sensor.readings"} {
		if _, ok := Resolve(payload, MustParse(expression)).ReadingValue(); ok {
			t.Errorf("%s produced a reading value from a non-scalar or null", expression)
		}
	}
}

func TestResolveEmptyObject(t *testing.T) {
	path := MustParse("system.free_heap")

	found := Resolve(mustParseJSON(t, `{"system":{"free_heap":12345}}`), path)
	value, ok := found.ReadingValue()
	if !ok || value.String() != "12345" {
		t.Errorf("free_heap = %v, %v; want 12345", value, ok)
	}

	if Resolve(mustParseJSON(t, `{"system":{}}`), path).Found() {
		t.Error("free_heap found in empty system object")
	}
}

func TestParseJSONRejectsGarbage(t *testing.T) {
	for _, document := range []string{"", "{", `{"a":1} {"b":2}`, "<html>"} {
		if _, err := ParseJSON([]byte(document)); err == nil {
			t.Errorf("ParseJSON(%q) succeeded", document)
		}
	}
}

func TestFromAny(t *testing.T) {
	value := FromAny(map[string]any{"a": []any{float64(1.5), "x", nil}})
	if Resolve(value, MustParse("a[0]")).String() != "1.5" {
		t.Error("float64 not converted to number")
	}
	if Resolve(value, MustParse("a[2]")).Kind() != Scalar {
		t.Error("null should be a scalar")
	}
}
