// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"testing"
	"time"
)

func TestLinkRangeBounds(t *testing.T) {
	r := LinkRange{StartReadingID: 101, EndReadingID: 103}

	if r.Span() != 3 {
		t.Errorf("Span() = %d, want 3", r.Span())
	}
	for id, want := range map[int64]bool{100: false, 101: true, 103: true, 104: false} {
		if got := r.Contains(id); got != want {
			t.Errorf("Contains(%d) = %v", id, got)
		}
	}

	tests := []struct {
		start, end int64
		want       bool
	}{
		{90, 100, false},
		{90, 101, true},
		{102, 102, true},
		{103, 200, true},
		{104, 200, false},
		{50, 500, true},
	}
	for _, test := range tests {
		if got := r.Overlaps(test.start, test.end); got != test.want {
			t.Errorf("Overlaps(%d, %d) = %v, want %v", test.start, test.end, got, test.want)
		}
	}
}

func TestDeviceDueAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Device{PollingEnabled: true, PollingInterval: time.Minute, Status: DeviceOnline}

	tests := []struct {
		name   string
		mutate func(*Device)
		want   bool
	}{
		{"never polled", func(d *Device) {}, true},
		{"recent success", func(d *Device) { d.LastPollSuccess = now.Add(-30 * time.Second) }, false},
		{"exactly one interval", func(d *Device) { d.LastPollSuccess = now.Add(-time.Minute) }, true},
		{"overdue", func(d *Device) { d.LastPollSuccess = now.Add(-time.Hour) }, true},
		{"polling disabled", func(d *Device) { d.PollingEnabled = false }, false},
		{"disabled status", func(d *Device) { d.Status = DeviceDisabled }, false},
		{"offline still due", func(d *Device) {
			d.Status = DeviceOffline
			d.LastPollSuccess = now.Add(-2 * time.Minute)
		}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			device := base
			test.mutate(&device)
			if got := device.DueAt(now); got != test.want {
				t.Errorf("DueAt = %v, want %v", got, test.want)
			}
		})
	}
}

func TestParseKinds(t *testing.T) {
	if kind, err := ParseLinkKind(""); err != nil || kind != LinkPrimary {
		t.Errorf("ParseLinkKind(\"\") = %q, %v", kind, err)
	}
	if _, err := ParseLinkKind("tertiary"); err == nil {
		t.Error("ParseLinkKind accepted an unknown kind")
	}
	if condition, err := ParseCondition("greater_than"); err != nil || condition != ConditionGreater {
		t.Errorf("ParseCondition(greater_than) = %q, %v", condition, err)
	}
	if _, err := ParseCondition("gte"); err == nil {
		t.Error("ParseCondition accepted gte")
	}
	if SourceKind("sensor").Valid() {
		t.Error("unknown source kind reported valid")
	}
}
