// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensordb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/catalog"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/ingest"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/testutil"
)

var dbTestEpoch = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

type captureSink struct {
	mu     sync.Mutex
	events []sensor.AlertEvent
}

func (s *captureSink) Deliver(_ context.Context, event sensor.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func TestOpenWiresPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sensorlink.db")
	sink := &captureSink{}

	db, err := Open(Config{
		Path:   path,
		Sink:   sink,
		Clock:  clock.Fake(dbTestEpoch),
		Logger: testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Catalog.PutEntry(ctx, catalog.Entry{EntryInfo: sensor.EntryInfo{ID: 3, TypeID: 1}, Name: "IPA"}); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if _, err := db.Catalog.PutRule(ctx, sensor.AlertRule{
		SensorType: "temperature",
		Condition:  sensor.ConditionGreater,
		Threshold:  30,
		Cooldown:   time.Hour,
		Active:     true,
		Title:      "Too warm",
	}); err != nil {
		t.Fatalf("PutRule: %v", err)
	}

	result, err := db.Pipeline.Ingest(ctx, ingest.Request{
		EntryIDs:   []int64{3},
		SensorType: "temperature",
		Values: []ingest.Value{
			{Value: sensor.Number(25), RecordedAt: dbTestEpoch},
			{Value: sensor.Number(31), RecordedAt: dbTestEpoch.Add(time.Minute)},
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.ReadingIDs) != 2 || len(result.Ranges) != 1 || len(result.Alerts) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(sink.events) != 1 || sink.events[0].Title != "Too warm" {
		t.Errorf("sink events = %+v", sink.events)
	}

	readings, err := db.Links.ReadingsForEntry(ctx, linkindex.ReadingsQuery{EntryID: 3})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	if len(readings) != 2 {
		t.Errorf("readings for entry = %d, want 2", len(readings))
	}

	events, err := alerting.ListEvents(ctx, db.Pool, alerting.EventFilter{EntryID: 3})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("recorded events = %d, want 1", len(events))
	}
}

func TestOpenIsIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorlink.db")
	for range 2 {
		db, err := Open(Config{Path: path, Clock: clock.Fake(dbTestEpoch), Logger: testutil.Logger(t)})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func TestOpenRequiresDependencies(t *testing.T) {
	if _, err := Open(Config{Path: "x.db", Logger: testutil.Logger(t)}); err == nil {
		t.Error("expected error without Clock")
	}
	if _, err := Open(Config{Path: "x.db", Clock: clock.Real()}); err == nil {
		t.Error("expected error without Logger")
	}
}

func TestIngestWithSingleConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "sensorlink.db"),
		PoolSize: 1,
		Sink:     &captureSink{},
		Clock:    clock.Fake(dbTestEpoch),
		Logger:   testutil.Logger(t),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Catalog.PutEntry(ctx, catalog.Entry{EntryInfo: sensor.EntryInfo{ID: 4, TypeID: 1}, Name: "Stout"}); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if _, err := db.Catalog.PutRule(ctx, sensor.AlertRule{
		SensorType: "gravity",
		Condition:  sensor.ConditionLess,
		Threshold:  1.010,
		Active:     true,
		Title:      "Fermentation finished",
	}); err != nil {
		t.Fatalf("PutRule: %v", err)
	}

	type outcome struct {
		result ingest.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := db.Pipeline.Ingest(ctx, ingest.Request{
			EntryIDs:   []int64{4},
			SensorType: "gravity",
			Values:     []ingest.Value{{Value: sensor.Number(1.008), RecordedAt: dbTestEpoch}},
		})
		done <- outcome{result, err}
	}()

	got := testutil.RequireReceive(t, done, 3*time.Second, "ingest did not finish with a one-connection pool")
	if got.err != nil {
		t.Fatalf("Ingest: %v", got.err)
	}
	if len(got.result.ReadingIDs) != 1 || len(got.result.Ranges) != 1 || len(got.result.Alerts) != 1 {
		t.Errorf("result = %+v", got.result)
	}
}
