// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

func TestDeviceURL(t *testing.T) {
	tests := []struct {
		address, endpoint, want string
	}{
		{"192.168.1.40", "", "http://192.168.1.40/api"},
		{"192.168.1.40:8080", "data", "http://192.168.1.40:8080/data"},
		{"https://probe.local/", "/v2/telemetry", "https://probe.local/v2/telemetry"},
	}
	for _, test := range tests {
		if got := DeviceURL(test.address, test.endpoint); got != test.want {
			t.Errorf("DeviceURL(%q, %q) = %q, want %q", test.address, test.endpoint, got, test.want)
		}
	}
}

func TestHTTPFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"system":{"free_heap":12345}}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sensor bus fault", http.StatusInternalServerError)
	})
	mux.HandleFunc("/hang", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	fetcher := NewHTTPFetcher(100 * time.Millisecond)
	ctx := context.Background()

	payload, err := fetcher.Fetch(ctx, sensor.Device{Address: server.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(payload) != `{"system":{"free_heap":12345}}` {
		t.Errorf("payload = %s", payload)
	}
	if probed, err := fetcher.Probe(ctx, server.URL); err != nil || len(probed) == 0 {
		t.Errorf("Probe = %s, %v", probed, err)
	}

	_, err = fetcher.Fetch(ctx, sensor.Device{Address: server.URL, Endpoint: "/broken"})
	if !fault.Is(err, fault.CategoryTransientNetwork) || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("broken endpoint error = %v", err)
	}

	_, err = fetcher.Fetch(ctx, sensor.Device{Address: server.URL, Endpoint: "/hang"})
	if !fault.Is(err, fault.CategoryTransientNetwork) || !strings.Contains(err.Error(), "timeout after 100ms") {
		t.Errorf("hanging endpoint error = %v", err)
	}
}

func TestHTTPFetcherDefaultEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"device_id":"esp32-a"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	fetcher := NewHTTPFetcher(time.Second).WithDefaultEndpoint("/telemetry")
	ctx := context.Background()

	if _, err := fetcher.Fetch(ctx, sensor.Device{Address: server.URL}); err != nil {
		t.Errorf("Fetch without endpoint: %v", err)
	}
	if _, err := fetcher.Probe(ctx, server.URL); err != nil {
		t.Errorf("Probe: %v", err)
	}
	// An explicit device endpoint still wins.
	if _, err := fetcher.Fetch(ctx, sensor.Device{Address: server.URL, Endpoint: "/api"}); !fault.Is(err, fault.CategoryTransientNetwork) {
		t.Errorf("Fetch /api error = %v, want HTTP 404", err)
	}
}
