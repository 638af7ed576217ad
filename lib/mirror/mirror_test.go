// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/testutil"
)

type writeCapture struct {
	mu     sync.Mutex
	status int
	bodies []string
	query  string
}

func (c *writeCapture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, string(body))
	c.query = r.URL.RawQuery
	status := c.status
	c.mu.Unlock()
	if status >= 400 {
		http.Error(w, `{"code":"invalid","message":"nope"}`, status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newTestMirror(t *testing.T, capture *writeCapture) *Mirror {
	t.Helper()
	server := httptest.NewServer(capture)
	t.Cleanup(server.Close)
	mirror, err := New(Config{
		URL:    server.URL,
		Token:  "token",
		Org:    "cellar",
		Bucket: "sensors",
		Logger: testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(mirror.Close)
	return mirror
}

func TestReadingsCommittedWritesPoints(t *testing.T) {
	capture := &writeCapture{}
	mirror := newTestMirror(t, capture)

	recorded := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	mirror.ReadingsCommitted(context.Background(), []int64{12, 13}, []sensor.Reading{
		{ID: 101, SensorType: "temperature", Value: sensor.Number(18.75), RecordedAt: recorded,
			SourceKind: sensor.SourceDevice, SourceID: "esp32-fermenter-01", Metadata: map[string]any{"unit": "°C"}},
		{ID: 102, SensorType: "status", Value: sensor.Text("fermenting"), RecordedAt: recorded,
			SourceKind: sensor.SourceManual},
	})

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.bodies) != 1 {
		t.Fatalf("writes = %d, want 1 batch", len(capture.bodies))
	}
	if !strings.Contains(capture.query, "bucket=sensors") || !strings.Contains(capture.query, "org=cellar") {
		t.Errorf("query = %q", capture.query)
	}
	lines := strings.Split(strings.TrimSpace(capture.bodies[0]), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	for _, fragment := range []string{
		"sensor_readings,",
		"sensor_type=temperature",
		"source_id=esp32-fermenter-01",
		"value=18.75",
		"reading_id=101i",
		`entry_ids="12,13"`,
		" " + strconv.FormatInt(recorded.UnixNano(), 10),
	} {
		if !strings.Contains(lines[0], fragment) {
			t.Errorf("line %q missing %q", lines[0], fragment)
		}
	}
	if !strings.Contains(lines[1], `value_text="fermenting"`) {
		t.Errorf("text reading line = %q", lines[1])
	}
}

func TestReadingsCommittedSwallowsErrors(t *testing.T) {
	capture := &writeCapture{status: http.StatusUnauthorized}
	mirror := newTestMirror(t, capture)

	// Must not panic or block; the failure is only logged.
	mirror.ReadingsCommitted(context.Background(), []int64{1}, []sensor.Reading{
		{ID: 1, SensorType: "temperature", Value: sensor.Number(20), RecordedAt: time.Now(), SourceKind: sensor.SourceAPI},
	})
	mirror.ReadingsCommitted(context.Background(), nil, nil)
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{URL: "http://localhost:8086", Logger: testutil.Logger(t)}); err == nil {
		t.Error("New without org and bucket succeeded")
	}
}
