// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// Manifest is the bulk configuration format accepted by Import:
//
//	{
//	  // Fermenter controller on the brewery VLAN.
//	  "devices": [{
//	    "device_id": "esp32-fermenter-01",
//	    "network_address": "192.168.1.40",
//	    "polling_interval": "30s",
//	    "entries": [12, 13],
//	    "mappings": [
//	      {"source_path": "sensor.temperature", "target_sensor_type": "temperature", "unit": "°C"},
//	    ],
//	  }],
//	  "entries": [{"id": 12, "type_id": 1}],
//	  "rules": [{"sensor_type": "temperature", "condition": "gt", "threshold": 24, "cooldown": "1h"}],
//	}
type Manifest struct {
	Entries []ManifestEntry  `json:"entries"`
	Devices []ManifestDevice `json:"devices"`
	Rules   []ManifestRule   `json:"rules"`
}

// ManifestEntry declares an entry.
type ManifestEntry struct {
	ID        int64  `json:"id"`
	TypeID    int64  `json:"type_id"`
	Lifecycle string `json:"lifecycle"`
	Name      string `json:"name"`
}

// ManifestDevice declares a device with its mappings and associated
// entries. Polling is enabled unless polling_enabled is false.
type ManifestDevice struct {
	ID              string            `json:"device_id"`
	Name            string            `json:"name"`
	Address         string            `json:"network_address"`
	Endpoint        string            `json:"endpoint"`
	Capabilities    []string          `json:"capabilities"`
	PollingEnabled  *bool             `json:"polling_enabled"`
	PollingInterval string            `json:"polling_interval"`
	Mappings        []ManifestMapping `json:"mappings"`
	Entries         []int64           `json:"entries"`
}

// ManifestMapping declares a field mapping. Mappings are enabled
// unless enabled is false.
type ManifestMapping struct {
	SourcePath       string `json:"source_path"`
	TargetSensorType string `json:"target_sensor_type"`
	Unit             string `json:"unit"`
	Enabled          *bool  `json:"enabled"`
}

// ManifestRule declares an alert rule. Cooldown is a Go duration
// string. Rules are active unless active is false.
type ManifestRule struct {
	ID                 int64    `json:"id"`
	SensorType         string   `json:"sensor_type"`
	EntryID            int64    `json:"entry_id"`
	EntryTypeID        int64    `json:"entry_type_id"`
	Condition          string   `json:"condition"`
	Threshold          float64  `json:"threshold"`
	ThresholdSecondary *float64 `json:"threshold_secondary"`
	Cooldown           string   `json:"cooldown"`
	Priority           string   `json:"priority"`
	Active             *bool    `json:"active"`
	Title              string   `json:"title"`
	Message            string   `json:"message"`
}

// ParseManifest strips JSONC comments and trailing commas from data,
// then unmarshals the result.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, fault.Validation("catalog: parsing manifest: %v", err)
	}
	return &manifest, nil
}

// ReadManifest reads and parses a JSONC manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading manifest: %w", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// ImportResult counts what Import wrote.
type ImportResult struct {
	Entries  int `json:"entries"`
	Devices  int `json:"devices"`
	Mappings int `json:"mappings"`
	Links    int `json:"links"`
	Rules    int `json:"rules"`
}

// Import validates the whole manifest, then writes it in one
// transaction. Existing records with the same identifiers are
// updated; nothing absent from the manifest is removed.
func (c *Catalog) Import(ctx context.Context, manifest *Manifest) (ImportResult, error) {
	plan, err := planImport(manifest)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err = c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		for _, entry := range plan.entries {
			if err := putEntry(conn, entry); err != nil {
				return err
			}
			result.Entries++
		}
		for _, device := range plan.devices {
			if err := upsertDevice(conn, device.Device); err != nil {
				return err
			}
			result.Devices++
			for _, mapping := range device.mappings {
				if err := putFieldMapping(conn, mapping); err != nil {
					return err
				}
				result.Mappings++
			}
			for _, entryID := range device.entries {
				if err := linkEntry(conn, device.ID, entryID); err != nil {
					return err
				}
				result.Links++
			}
		}
		for _, rule := range plan.rules {
			if _, err := putRule(conn, rule); err != nil {
				return err
			}
			result.Rules++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	c.logger.Info("manifest imported",
		"entries", result.Entries,
		"devices", result.Devices,
		"mappings", result.Mappings,
		"links", result.Links,
		"rules", result.Rules,
	)
	return result, nil
}

// Check validates manifest the way Import does and reports what
// Import would write, without touching the database.
func (manifest *Manifest) Check() (ImportResult, error) {
	plan, err := planImport(manifest)
	if err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{
		Entries: len(plan.entries),
		Devices: len(plan.devices),
		Rules:   len(plan.rules),
	}
	for _, device := range plan.devices {
		result.Mappings += len(device.mappings)
		result.Links += len(device.entries)
	}
	return result, nil
}

type importPlan struct {
	entries []Entry
	devices []plannedDevice
	rules   []sensor.AlertRule
}

type plannedDevice struct {
	sensor.Device
	mappings []sensor.FieldMapping
	entries  []int64
}

func planImport(manifest *Manifest) (importPlan, error) {
	var plan importPlan
	for _, declared := range manifest.Entries {
		entry := Entry{
			EntryInfo: sensor.EntryInfo{
				ID:        declared.ID,
				TypeID:    declared.TypeID,
				Lifecycle: sensor.Lifecycle(declared.Lifecycle),
			},
			Name: declared.Name,
		}
		if entry.ID <= 0 {
			return importPlan{}, fault.Validation("catalog: manifest entry id must be positive")
		}
		if entry.Lifecycle == "" {
			entry.Lifecycle = sensor.LifecycleActive
		}
		plan.entries = append(plan.entries, entry)
	}

	for _, declared := range manifest.Devices {
		device := plannedDevice{
			Device: sensor.Device{
				ID:             declared.ID,
				Name:           declared.Name,
				Address:        declared.Address,
				Endpoint:       declared.Endpoint,
				Capabilities:   declared.Capabilities,
				PollingEnabled: declared.PollingEnabled == nil || *declared.PollingEnabled,
			},
			entries: declared.Entries,
		}
		if declared.PollingInterval != "" {
			interval, err := time.ParseDuration(declared.PollingInterval)
			if err != nil {
				return importPlan{}, fault.Validation("catalog: manifest device %s: polling_interval: %v", declared.ID, err)
			}
			device.PollingInterval = interval
		}
		if err := validateDevice(&device.Device); err != nil {
			return importPlan{}, err
		}
		for _, declaredMapping := range declared.Mappings {
			mapping := sensor.FieldMapping{
				DeviceID:         device.ID,
				SourcePath:       declaredMapping.SourcePath,
				TargetSensorType: declaredMapping.TargetSensorType,
				Unit:             declaredMapping.Unit,
				Enabled:          declaredMapping.Enabled == nil || *declaredMapping.Enabled,
			}
			if err := validateMapping(&mapping); err != nil {
				return importPlan{}, err
			}
			device.mappings = append(device.mappings, mapping)
		}
		plan.devices = append(plan.devices, device)
	}

	for _, declared := range manifest.Rules {
		rule := sensor.AlertRule{
			ID:                 declared.ID,
			SensorType:         declared.SensorType,
			Scope:              sensor.RuleScope{EntryID: declared.EntryID, EntryTypeID: declared.EntryTypeID},
			Condition:          sensor.Condition(declared.Condition),
			Threshold:          declared.Threshold,
			ThresholdSecondary: declared.ThresholdSecondary,
			Priority:           sensor.Priority(declared.Priority),
			Active:             declared.Active == nil || *declared.Active,
			Title:              declared.Title,
			Message:            declared.Message,
		}
		if declared.Cooldown != "" {
			cooldown, err := time.ParseDuration(declared.Cooldown)
			if err != nil {
				return importPlan{}, fault.Validation("catalog: manifest rule for %s: cooldown: %v", declared.SensorType, err)
			}
			rule.Cooldown = cooldown
		}
		if err := validateRule(&rule); err != nil {
			return importPlan{}, err
		}
		plan.rules = append(plan.rules, rule)
	}
	return plan, nil
}
