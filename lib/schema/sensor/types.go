// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"fmt"
	"time"
)

// SourceKind identifies where a reading came from.
type SourceKind string

const (
	SourceDevice SourceKind = "device"
	SourceManual SourceKind = "manual"
	SourceAPI    SourceKind = "api"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceDevice, SourceManual, SourceAPI:
		return true
	}
	return false
}

// LinkKind is the role of an association between an entry and a span
// of readings. Ranges of different kinds are never merged.
type LinkKind string

const (
	LinkPrimary   LinkKind = "primary"
	LinkSecondary LinkKind = "secondary"
	LinkReference LinkKind = "reference"
)

// Valid reports whether k is a known link kind.
func (k LinkKind) Valid() bool {
	switch k {
	case LinkPrimary, LinkSecondary, LinkReference:
		return true
	}
	return false
}

// ParseLinkKind parses a link kind, defaulting the empty string to
// LinkPrimary.
func ParseLinkKind(s string) (LinkKind, error) {
	if s == "" {
		return LinkPrimary, nil
	}
	kind := LinkKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown link kind %q (want primary, secondary, or reference)", s)
	}
	return kind, nil
}

// Reading is one immutable, timestamped sensor value in the append-only
// store. IDs are assigned by the store and strictly increase.
type Reading struct {
	ID         int64          `json:"id"`
	SensorType string         `json:"sensor_type"`
	Value      Value          `json:"value"`
	RecordedAt time.Time      `json:"recorded_at"`
	SourceKind SourceKind     `json:"source_kind"`
	SourceID   string         `json:"source_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LinkRange associates EntryID with every reading of SensorType whose
// ID lies in [StartReadingID, EndReadingID]. Readings are shared: the
// same reading may fall inside ranges owned by many entries.
type LinkRange struct {
	ID             int64          `json:"id"`
	EntryID        int64          `json:"entry_id"`
	SensorType     string         `json:"sensor_type"`
	StartReadingID int64          `json:"start_reading_id"`
	EndReadingID   int64          `json:"end_reading_id"`
	Kind           LinkKind       `json:"link_kind"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Contains reports whether readingID lies within the range bounds.
func (r LinkRange) Contains(readingID int64) bool {
	return readingID >= r.StartReadingID && readingID <= r.EndReadingID
}

// Overlaps reports whether the range intersects [start, end].
func (r LinkRange) Overlaps(start, end int64) bool {
	return r.StartReadingID <= end && r.EndReadingID >= start
}

// Span returns the number of identifiers covered by the range.
func (r LinkRange) Span() int64 { return r.EndReadingID - r.StartReadingID + 1 }

// DeviceStatus is the polling state of a registered device.
//
//	pending → online ⇄ offline
//
// disabled is reachable from every state and left only by re-enabling,
// which returns the device to pending.
type DeviceStatus string

const (
	DevicePending  DeviceStatus = "pending"
	DeviceOnline   DeviceStatus = "online"
	DeviceOffline  DeviceStatus = "offline"
	DeviceDisabled DeviceStatus = "disabled"
)

// Device is an external network device polled for telemetry.
// Zero times mean "never".
type Device struct {
	ID              string        `json:"device_id"`
	Name            string        `json:"name,omitempty"`
	Address         string        `json:"network_address"`
	Endpoint        string        `json:"endpoint,omitempty"`
	Capabilities    []string      `json:"capabilities,omitempty"`
	PollingEnabled  bool          `json:"polling_enabled"`
	PollingInterval time.Duration `json:"polling_interval"`
	Status          DeviceStatus  `json:"status"`
	LastSeen        time.Time     `json:"last_seen"`
	LastPollSuccess time.Time     `json:"last_poll_success"`
	LastPollError   string        `json:"last_poll_error,omitempty"`
}

// DueAt reports whether the device should be polled at now: polling
// enabled, not disabled, and either never polled successfully or at
// least PollingInterval since the last success.
func (d Device) DueAt(now time.Time) bool {
	if !d.PollingEnabled || d.Status == DeviceDisabled {
		return false
	}
	if d.LastPollSuccess.IsZero() {
		return true
	}
	return !now.Before(d.LastPollSuccess.Add(d.PollingInterval))
}

// FieldMapping projects one value out of a device payload into a
// reading of TargetSensorType. SourcePath uses the lib/devicepath
// syntax, e.g. "sensor.readings[0].value".
type FieldMapping struct {
	DeviceID         string `json:"device_id"`
	SourcePath       string `json:"source_path"`
	TargetSensorType string `json:"target_sensor_type"`
	Unit             string `json:"unit,omitempty"`
	Enabled          bool   `json:"enabled"`
}
