// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/devicepath"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/testutil"
)

func TestHostAddresses(t *testing.T) {
	tests := []struct {
		cidr  string
		count int
		first string
		last  string
	}{
		{"192.168.1.0/30", 2, "192.168.1.1", "192.168.1.2"},
		{"192.168.1.77/30", 2, "192.168.1.77", "192.168.1.78"},
		{"10.0.0.0/31", 2, "10.0.0.0", "10.0.0.1"},
		{"10.0.0.9/32", 1, "10.0.0.9", "10.0.0.9"},
		{"192.168.0.0/23", 510, "192.168.0.1", "192.168.1.254"},
		{"255.255.255.252/30", 2, "255.255.255.253", "255.255.255.254"},
	}
	for _, test := range tests {
		hosts, err := HostAddresses(test.cidr, DefaultMaxScanAddresses)
		if err != nil {
			t.Errorf("HostAddresses(%s): %v", test.cidr, err)
			continue
		}
		if len(hosts) != test.count || hosts[0].String() != test.first || hosts[len(hosts)-1].String() != test.last {
			t.Errorf("HostAddresses(%s) = %d hosts %v..%v", test.cidr, len(hosts), hosts[0], hosts[len(hosts)-1])
		}
	}

	for _, cidr := range []string{"192.168.0.0/22", "0.0.0.0/0", "192.168.1.300/24", "garbage", "192.168.1.5", "fd00::/120"} {
		if _, err := HostAddresses(cidr, DefaultMaxScanAddresses); !fault.Is(err, fault.CategoryValidation) {
			t.Errorf("HostAddresses(%s) error = %v, want validation", cidr, err)
		}
	}
}

type scriptedProber struct {
	payloads map[string]string

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	probed      []string
}

func (p *scriptedProber) Probe(ctx context.Context, address string) ([]byte, error) {
	p.mu.Lock()
	p.inFlight++
	p.maxInFlight = max(p.maxInFlight, p.inFlight)
	p.probed = append(p.probed, address)
	p.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	payload, ok := p.payloads[address]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(payload), nil
}

func TestScanFindsCompatibleDevices(t *testing.T) {
	prober := &scriptedProber{payloads: map[string]string{
		"192.168.4.9":  `{"device_id":"esp32-fermenter-01","device_name":"Cellar Fermenter","sensor":{"temperature":18.5},"relay":{"state":"off"}}`,
		"192.168.4.2":  `{"device_name":"ESP32 Probe"}`,
		"192.168.4.3":  `{"device_id":"office-printer"}`,
		"192.168.4.5":  `<html>router login</html>`,
		"192.168.4.6":  `[{"device_id":"esp32"}]`,
		"192.168.4.14": `{"device_id":"controller-7","sensor":{}}`,
	}}
	discovery, err := NewDiscovery(DiscoveryConfig{
		Prober:      prober,
		Concurrency: 3,
		Clock:       clock.Fake(pollerTestEpoch),
		Logger:      testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("NewDiscovery: %v", err)
	}

	result, err := discovery.Scan(context.Background(), "192.168.4.0/28")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Probed != 14 || len(prober.probed) != 14 {
		t.Errorf("probed %d (reported %d), want 14", len(prober.probed), result.Probed)
	}
	if prober.maxInFlight > 3 {
		t.Errorf("max in flight = %d, want <= 3", prober.maxInFlight)
	}

	var addresses []string
	for _, device := range result.Devices {
		addresses = append(addresses, device.Address)
	}
	if !slices.Equal(addresses, []string{"192.168.4.2", "192.168.4.9", "192.168.4.14"}) {
		t.Fatalf("found %v", addresses)
	}

	probe := result.Devices[0]
	if probe.Kind != KindESP32 || probe.DeviceID != FallbackDeviceID("192.168.4.2") || probe.Name != "ESP32 Probe" ||
		len(probe.Capabilities) != 0 {
		t.Errorf("ESP32 probe = %+v", probe)
	}
	fermenter := result.Devices[1]
	if fermenter.Kind != KindFermentation || fermenter.DeviceID != "esp32-fermenter-01" ||
		!slices.Equal(fermenter.Capabilities, []string{"temperature", "relay_control"}) {
		t.Errorf("fermenter = %+v", fermenter)
	}
	controller := result.Devices[2]
	if controller.Kind != KindGeneric || controller.Name != "Device at 192.168.4.14" ||
		!slices.Equal(controller.Capabilities, []string{"temperature"}) {
		t.Errorf("controller = %+v", controller)
	}
}

func TestScanRejectsLargeRangeWithoutProbing(t *testing.T) {
	prober := &scriptedProber{}
	discovery, err := NewDiscovery(DiscoveryConfig{Prober: prober, Clock: clock.Real(), Logger: testutil.Logger(t)})
	if err != nil {
		t.Fatalf("NewDiscovery: %v", err)
	}
	if _, err := discovery.Scan(context.Background(), "10.0.0.0/16"); !fault.Is(err, fault.CategoryValidation) {
		t.Errorf("Scan(/16) error = %v, want validation", err)
	}
	if len(prober.probed) != 0 {
		t.Errorf("probed %d addresses for a rejected range", len(prober.probed))
	}
}

func TestIdentifyRequiresIdentifierAndPattern(t *testing.T) {
	tests := []struct {
		payload string
		ok      bool
	}{
		{`{"device_id":"Brewery-Temp"}`, true},
		{`{"device_name":"SENSOR hub"}`, true},
		{`{"device_id":""}`, false},
		{`{"name":"esp32"}`, false},
		{`{"device_id":"thermostat-2"}`, false},
	}
	for _, test := range tests {
		document, err := devicepath.ParseJSON([]byte(test.payload))
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := Identify("10.0.0.1", document, DefaultNamePatterns); ok != test.ok {
			t.Errorf("Identify(%s) = %v, want %v", test.payload, ok, test.ok)
		}
	}
}

func TestFallbackDeviceID(t *testing.T) {
	first := FallbackDeviceID("192.168.1.40")
	if first != FallbackDeviceID("192.168.1.40") {
		t.Error("fallback id is not stable")
	}
	if first == FallbackDeviceID("192.168.1.41") {
		t.Error("fallback ids collide for neighbouring addresses")
	}
	if len(first) != len("device-")+12 {
		t.Errorf("fallback id = %q", first)
	}
}
