// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devicepath

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expression string
		want       Path
	}{
		{"system.free_heap", Path{{Key: "system"}, {Key: "free_heap"}}},
		{"sensor.readings[0].value", Path{{Key: "sensor"}, {Key: "readings"}, {Index: 0, IsIndex: true}, {Key: "value"}}},
		{"matrix[2][10]", Path{{Key: "matrix"}, {Index: 2, IsIndex: true}, {Index: 10, IsIndex: true}}},
		{"[1].temp", Path{{Index: 1, IsIndex: true}, {Key: "temp"}}},
		{"  uptime ", Path{{Key: "uptime"}}},
	}
	for _, test := range tests {
		got, err := Parse(test.expression)
		if err != nil {
			t.Errorf("Parse(%q): %v", test.expression, err)
			continue
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("Parse(%q) = %+v, want %+v", test.expression, got, test.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, expression := range []string{
		"",
		"system..free_heap",
		".system",
		"system.",
		"readings[",
		"readings[]",
		"readings[-1]",
		"readings[+1]",
		"readings[x]",
		"readings[0]extra",
		"bad]key",
		"a.[0]",
	} {
		if _, err := Parse(expression); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", expression)
		}
	}
}

func TestPathStringRoundTrips(t *testing.T) {
	for _, expression := range []string{"system.free_heap", "sensor.readings[0].value", "m[1][2].x", "[0].temp"} {
		if got := MustParse(expression).String(); got != expression {
			t.Errorf("String() = %q, want %q", got, expression)
		}
	}
}
