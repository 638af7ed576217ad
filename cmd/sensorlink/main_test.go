// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/catalog"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/ingest"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
	"github.com/bureau-foundation/sensorlink/lib/poller"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/testutil"
)

const testManifest = `{
	"entries": [{"id": 12, "type_id": 1, "name": "Saison"}],
	"devices": [{
		"device_id": "esp32-fermenter-01",
		"network_address": "192.168.4.10",
		"entries": [12],
		"mappings": [{"source_path": "sensor.temperature", "target_sensor_type": "temperature"}],
	}],
	"rules": [{"sensor_type": "temperature", "condition": "gt", "threshold": 24}],
}`

// testConfig writes a config file pointing at a fresh database and
// returns its path.
func testConfig(t *testing.T) string {
	t.Helper()
	directory := t.TempDir()
	path := filepath.Join(directory, "sensorlink.yaml")
	writeFile(t, path, "database:\n  path: "+filepath.Join(directory, "sensorlink.db")+"\n")
	return path
}

func openTestConnection(t *testing.T, configPath string) *connection {
	t.Helper()
	params := ConnectionParams{ConfigPath: configPath, LogLevel: "error"}
	conn, err := params.open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestRootSuggestsMistypedCommand(t *testing.T) {
	err := root().Execute([]string{"optimise", "12"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "optimize"`) {
		t.Errorf("error = %v", err)
	}
}

func TestEntryIDArgument(t *testing.T) {
	if id, err := entryIDArgument([]string{"42"}); err != nil || id != 42 {
		t.Errorf("entryIDArgument(42) = %d, %v", id, err)
	}
	for _, args := range [][]string{nil, {"0"}, {"twelve"}, {"1", "2"}} {
		if _, err := entryIDArgument(args); err == nil {
			t.Errorf("entryIDArgument(%v) succeeded", args)
		}
	}
}

func TestImportCommand(t *testing.T) {
	configPath := testConfig(t)
	manifestPath := filepath.Join(t.TempDir(), "devices.jsonc")
	writeFile(t, manifestPath, testManifest)

	// A dry run validates without writing.
	err := importCommand().Execute([]string{manifestPath, "--config", configPath, "--log-level", "error", "--dry-run"})
	if err != nil {
		t.Fatalf("import --dry-run: %v", err)
	}
	conn := openTestConnection(t, configPath)
	devices, err := conn.db.Catalog.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("dry run wrote %d devices", len(devices))
	}

	if err := importCommand().Execute([]string{manifestPath, "--config", configPath, "--log-level", "error"}); err != nil {
		t.Fatalf("import: %v", err)
	}
	devices, _ = conn.db.Catalog.ListDevices(context.Background())
	if len(devices) != 1 || devices[0].ID != "esp32-fermenter-01" {
		t.Fatalf("devices after import = %+v", devices)
	}

	var table bytes.Buffer
	if err := writeDevices(&table, devices, time.Now()); err != nil {
		t.Fatalf("writeDevices: %v", err)
	}
	for _, want := range []string{"DEVICE", "esp32-fermenter-01", "192.168.4.10", "never", "pending"} {
		if !strings.Contains(table.String(), want) {
			t.Errorf("device table missing %q:\n%s", want, table.String())
		}
	}
}

func TestEntryCommands(t *testing.T) {
	configPath := testConfig(t)
	conn := openTestConnection(t, configPath)
	ctx := context.Background()

	if err := conn.db.Catalog.PutEntry(ctx, catalog.Entry{EntryInfo: sensor.EntryInfo{ID: 7, TypeID: 1}}); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for batch := range 2 {
		_, err := conn.db.Pipeline.Ingest(ctx, ingest.Request{
			EntryIDs:   []int64{7},
			SensorType: "gravity",
			Values: []ingest.Value{
				{Value: sensor.Number(1.050 - float64(batch)*0.01), RecordedAt: start.Add(time.Duration(batch) * time.Hour)},
			},
		})
		if err != nil {
			t.Fatalf("Ingest batch %d: %v", batch, err)
		}
	}

	// The command opens its own connection alongside the test's.
	if err := optimizeCommand().Execute([]string{"7", "--config", configPath, "--log-level", "error"}); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	summary, err := conn.db.Links.Summary(ctx, 7)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Ranges != 1 || summary.Readings != 2 {
		t.Errorf("summary after optimize = %+v", summary)
	}

	var output bytes.Buffer
	if err := writeSummary(&output, summary); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}
	if !strings.Contains(output.String(), "Entry 7: 2 readings in 1 ranges") ||
		!strings.Contains(output.String(), "gravity") {
		t.Errorf("summary output:\n%s", output.String())
	}

	readings, err := conn.db.Links.ReadingsForEntry(ctx, linkindex.ReadingsQuery{EntryID: 7})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	output.Reset()
	if err := writeReadings(&output, readings); err != nil {
		t.Fatalf("writeReadings: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[1], "2026-03-01T09:00:00Z") {
		t.Errorf("readings output, newest first expected:\n%s", output.String())
	}

	output.Reset()
	if err := writeReadings(&output, nil); err != nil || !strings.Contains(output.String(), "no readings") {
		t.Errorf("empty readings output = %q, %v", output.String(), err)
	}
}

func TestPathsFromStoredPayload(t *testing.T) {
	conn := openTestConnection(t, testConfig(t))
	ctx := context.Background()

	err := conn.db.Catalog.UpsertDevice(ctx, sensor.Device{ID: "esp32-a", Address: "192.168.4.20"})
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	if _, err := storedPayload(ctx, conn.db.Catalog, "esp32-a"); err == nil {
		t.Fatal("expected an error before the first successful poll")
	}

	payload := []byte(`{"sensor": {"temperature": 19.5}, "system": {"free_heap": 41000, "version": "1.2"}}`)
	if err := conn.db.Catalog.RecordPollSuccess(ctx, "esp32-a", time.Now(), payload); err != nil {
		t.Fatalf("RecordPollSuccess: %v", err)
	}
	stored, err := storedPayload(ctx, conn.db.Catalog, "esp32-a")
	if err != nil {
		t.Fatalf("storedPayload: %v", err)
	}
	leaves, err := payloadLeaves(stored, 0)
	if err != nil {
		t.Fatalf("payloadLeaves: %v", err)
	}
	var paths []string
	for _, leaf := range leaves {
		paths = append(paths, leaf.Path)
	}
	want := "sensor.temperature,system.free_heap,system.version"
	if strings.Join(paths, ",") != want {
		t.Errorf("paths = %v, want %s", paths, want)
	}

	var output bytes.Buffer
	if err := writeLeaves(&output, leaves); err != nil {
		t.Fatalf("writeLeaves: %v", err)
	}
	if !strings.Contains(output.String(), "°C") || !strings.Contains(output.String(), "bytes") {
		t.Errorf("leaves output missing units:\n%s", output.String())
	}
}

type stubProber map[string]string

func (p stubProber) Probe(_ context.Context, address string) ([]byte, error) {
	payload, ok := p[address]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(payload), nil
}

func TestScanRegistersOnlyNewDevices(t *testing.T) {
	conn := openTestConnection(t, testConfig(t))
	ctx := context.Background()

	known := sensor.Device{ID: "esp32-known", Address: "192.168.4.9", PollingEnabled: true}
	if err := conn.db.Catalog.UpsertDevice(ctx, known); err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}

	discovery, err := poller.NewDiscovery(poller.DiscoveryConfig{
		Prober: stubProber{
			"192.168.4.9":  `{"device_id": "esp32-known", "device_name": "Known sensor"}`,
			"192.168.4.10": `{"device_id": "esp32-fermenter-1", "device_name": "Fermentation Controller", "sensor": {"temp": 19.2}}`,
			"192.168.4.11": `{"hostname": "printer"}`,
		},
		Clock:  clock.Real(),
		Logger: testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("NewDiscovery: %v", err)
	}

	report, err := runScan(ctx, discovery, conn.db.Catalog, "192.168.4.8/29")
	if err != nil {
		t.Fatalf("runScan: %v", err)
	}
	if len(report.Devices) != 2 {
		t.Fatalf("discovered = %+v", report.Devices)
	}
	if len(report.Registered) != 1 || report.Registered[0] != "esp32-fermenter-1" {
		t.Errorf("registered = %v", report.Registered)
	}

	registered, err := conn.db.Catalog.Device(ctx, "esp32-fermenter-1")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if registered.PollingEnabled || registered.Status != sensor.DevicePending {
		t.Errorf("registered device = %+v", registered)
	}
	stillKnown, _ := conn.db.Catalog.Device(ctx, "esp32-known")
	if !stillKnown.PollingEnabled {
		t.Error("scan must not reconfigure a known device")
	}

	var output bytes.Buffer
	if err := writeScan(&output, report, true); err != nil {
		t.Fatalf("writeScan: %v", err)
	}
	for _, want := range []string{"Scanned 6 addresses", "esp32_fermentation", "Registered 1 new devices"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("scan output missing %q:\n%s", want, output.String())
		}
	}
}

func TestRelativeAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-72 * time.Hour), "3d ago"},
	}
	for _, test := range tests {
		if got := relativeAge(now, test.at); got != test.want {
			t.Errorf("relativeAge(%v) = %q, want %q", test.at, got, test.want)
		}
	}
}
