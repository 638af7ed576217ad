// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linkindex

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/readingstore"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
	"github.com/bureau-foundation/sensorlink/lib/testutil"
)

var indexTestEpoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type testFixture struct {
	pool     *sqlitepool.Pool
	readings *readingstore.Store
	index    *Index
}

// newFixture opens a database whose next reading id is 101.
func newFixture(t *testing.T) *testFixture {
	t.Helper()
	pool := testutil.OpenPool(t, readingstore.Schema, Schema)
	testutil.Exec(t, pool, "INSERT INTO sqlite_sequence (name, seq) VALUES ('readings', 100)")

	fakeClock := clock.Fake(indexTestEpoch)
	logger := testutil.Logger(t)
	readings, err := readingstore.New(readingstore.Config{Pool: pool, Clock: fakeClock, Logger: logger})
	if err != nil {
		t.Fatalf("readingstore.New: %v", err)
	}
	index, err := New(Config{Pool: pool, Clock: fakeClock, Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testFixture{pool: pool, readings: readings, index: index}
}

// appendReadings stores count readings one minute apart and returns
// their ids.
func (f *testFixture) appendReadings(t *testing.T, sensorType string, count int) []int64 {
	t.Helper()
	batch := make([]readingstore.NewReading, count)
	for index := range batch {
		batch[index] = readingstore.NewReading{
			SensorType: sensorType,
			Value:      sensor.Number(float64(20 + index)),
			RecordedAt: indexTestEpoch.Add(time.Duration(index) * time.Minute),
		}
	}
	ids, err := f.readings.AppendBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	return ids
}

func (f *testFixture) link(t *testing.T, entryID int64, sensorType string, start, end int64, kind sensor.LinkKind) sensor.LinkRange {
	t.Helper()
	var ids []int64
	for id := start; id <= end; id++ {
		ids = append(ids, id)
	}
	created, err := f.index.Link(context.Background(), LinkRequest{
		EntryID:    entryID,
		SensorType: sensorType,
		ReadingIDs: ids,
		Kind:       kind,
	})
	if err != nil {
		t.Fatalf("Link(%d, %s, [%d,%d]): %v", entryID, sensorType, start, end, err)
	}
	return created
}

func TestLinkSpansBatchExactly(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	ids := fixture.appendReadings(t, "Temperature", 2)
	if ids[0] != 101 || ids[1] != 102 {
		t.Fatalf("ids = %v, want [101 102]", ids)
	}

	for _, entryID := range []int64{7, 9} {
		created, err := fixture.index.Link(ctx, LinkRequest{
			EntryID:    entryID,
			SensorType: "Temperature",
			ReadingIDs: []int64{ids[1], ids[0]},
		})
		if err != nil {
			t.Fatalf("Link: %v", err)
		}
		if created.StartReadingID != 101 || created.EndReadingID != 102 || created.Kind != sensor.LinkPrimary {
			t.Errorf("created = %+v, want [101,102] primary", created)
		}
	}

	entries, err := fixture.index.EntriesForRange(ctx, 101, 102)
	if err != nil {
		t.Fatalf("EntriesForRange: %v", err)
	}
	if !slices.Equal(entries, []int64{7, 9}) {
		t.Errorf("EntriesForRange = %v, want [7 9]", entries)
	}
}

func TestReadingsForEntryNewestFirst(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	_, err := fixture.readings.AppendBatch(ctx, []readingstore.NewReading{
		{SensorType: "Temperature", Value: sensor.Text("21.0"), RecordedAt: indexTestEpoch},
		{SensorType: "Temperature", Value: sensor.Text("21.4"), RecordedAt: indexTestEpoch.Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	fixture.link(t, 7, "Temperature", 101, 102, sensor.LinkPrimary)

	readings, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 7, SensorType: "Temperature"})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0].ID != 102 || readings[0].Value.String() != "21.4" {
		t.Errorf("first reading = %+v, want 102 (21.4)", readings[0])
	}
	if readings[1].ID != 101 || readings[1].Value.String() != "21.0" {
		t.Errorf("second reading = %+v, want 101 (21.0)", readings[1])
	}
}

func TestReadingsForEntryDeduplicatesAndFilters(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	fixture.appendReadings(t, "Temperature", 10) // 101-110
	fixture.appendReadings(t, "Gravity", 3)      // 111-113

	fixture.link(t, 7, "Temperature", 101, 106, sensor.LinkPrimary)
	fixture.link(t, 7, "Temperature", 104, 110, sensor.LinkSecondary)
	fixture.link(t, 7, "Gravity", 111, 113, sensor.LinkPrimary)
	fixture.link(t, 8, "Temperature", 101, 103, sensor.LinkReference)

	all, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 7})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	if len(all) != 13 {
		t.Errorf("entry 7 readings = %d, want 13 (overlap counted once)", len(all))
	}

	temperature, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 7, SensorType: "Temperature"})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	if len(temperature) != 10 {
		t.Errorf("temperature readings = %d, want 10", len(temperature))
	}
	for index := 1; index < len(temperature); index++ {
		if temperature[index].RecordedAt.After(temperature[index-1].RecordedAt) {
			t.Fatalf("readings not newest first at %d", index)
		}
	}

	page, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 7, SensorType: "Temperature", Limit: 3, Offset: 2})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	var pageIDs []int64
	for _, reading := range page {
		pageIDs = append(pageIDs, reading.ID)
	}
	if !slices.Equal(pageIDs, []int64{108, 107, 106}) {
		t.Errorf("page ids = %v, want [108 107 106]", pageIDs)
	}

	shared, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 8})
	if err != nil {
		t.Fatalf("ReadingsForEntry: %v", err)
	}
	if len(shared) != 3 {
		t.Errorf("entry 8 readings = %d, want 3 shared with entry 7", len(shared))
	}

	if _, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 7, Offset: -1}); !fault.Is(err, fault.CategoryValidation) {
		t.Errorf("negative offset error = %v, want validation", err)
	}
}

func TestLinkValidation(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()
	fixture.appendReadings(t, "Temperature", 5) // 101-105
	fixture.appendReadings(t, "Gravity", 2)     // 106-107

	tests := []struct {
		name     string
		request  LinkRequest
		category fault.Category
	}{
		{"no ids", LinkRequest{EntryID: 7, SensorType: "Temperature"}, fault.CategoryValidation},
		{"no sensor type", LinkRequest{EntryID: 7, ReadingIDs: []int64{101}}, fault.CategoryValidation},
		{"bad entry", LinkRequest{EntryID: 0, SensorType: "Temperature", ReadingIDs: []int64{101}}, fault.CategoryValidation},
		{"bad kind", LinkRequest{EntryID: 7, SensorType: "Temperature", ReadingIDs: []int64{101}, Kind: "owner"}, fault.CategoryValidation},
		{"gap", LinkRequest{EntryID: 7, SensorType: "Temperature", ReadingIDs: []int64{101, 103}}, fault.CategoryValidation},
		{"missing readings", LinkRequest{EntryID: 7, SensorType: "Temperature", ReadingIDs: []int64{200, 201}}, fault.CategoryDataIntegrity},
		{"foreign sensor type inside span", LinkRequest{EntryID: 7, SensorType: "Temperature", ReadingIDs: []int64{105, 106}}, fault.CategoryDataIntegrity},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := fixture.index.Link(ctx, test.request)
			if !fault.Is(err, test.category) {
				t.Fatalf("error = %v, want %s", err, test.category)
			}
		})
	}

	if count := testutil.Count(t, fixture.pool, "SELECT COUNT(*) FROM link_ranges"); count != 0 {
		t.Errorf("rejected links stored %d ranges", count)
	}

	// Duplicates collapse into one contiguous set.
	created, err := fixture.index.Link(ctx, LinkRequest{
		EntryID: 7, SensorType: "Temperature", ReadingIDs: []int64{102, 101, 102, 103},
	})
	if err != nil {
		t.Fatalf("Link with duplicates: %v", err)
	}
	if created.StartReadingID != 101 || created.EndReadingID != 103 {
		t.Errorf("created = %+v, want [101,103]", created)
	}
}

func TestEntriesForRangeMatchesIntervalOverlap(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()
	fixture.appendReadings(t, "Temperature", 30) // 101-130

	ranges := []struct {
		entry      int64
		start, end int64
	}{
		{1, 101, 105},
		{2, 106, 110},
		{3, 108, 120},
		{4, 121, 121},
		{5, 125, 130},
	}
	for _, r := range ranges {
		fixture.link(t, r.entry, "Temperature", r.start, r.end, sensor.LinkPrimary)
	}

	for a := int64(99); a <= 132; a += 3 {
		for b := a; b <= 132; b += 4 {
			got, err := fixture.index.EntriesForRange(ctx, a, b)
			if err != nil {
				t.Fatalf("EntriesForRange(%d,%d): %v", a, b, err)
			}
			var want []int64
			for _, r := range ranges {
				if r.start <= b && r.end >= a {
					want = append(want, r.entry)
				}
			}
			if !slices.Equal(got, want) {
				t.Errorf("EntriesForRange(%d,%d) = %v, want %v", a, b, got, want)
			}
		}
	}

	overlapping, err := fixture.index.RangesOverlapping(ctx, 109, 121)
	if err != nil {
		t.Fatalf("RangesOverlapping: %v", err)
	}
	var entries []int64
	for _, linkRange := range overlapping {
		entries = append(entries, linkRange.EntryID)
	}
	if !slices.Equal(entries, []int64{2, 3, 4}) {
		t.Errorf("RangesOverlapping entries = %v, want [2 3 4]", entries)
	}

	if _, err := fixture.index.EntriesForRange(ctx, 10, 5); !fault.Is(err, fault.CategoryValidation) {
		t.Errorf("inverted bounds error = %v, want validation", err)
	}
}

func TestUnlink(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()
	fixture.appendReadings(t, "Temperature", 4) // 101-104
	fixture.appendReadings(t, "Gravity", 2)     // 105-106

	fixture.link(t, 7, "Temperature", 101, 102, sensor.LinkPrimary)
	fixture.link(t, 7, "Temperature", 103, 104, sensor.LinkPrimary)
	fixture.link(t, 7, "Gravity", 105, 106, sensor.LinkPrimary)
	fixture.link(t, 8, "Temperature", 101, 104, sensor.LinkPrimary)

	removed, err := fixture.index.Unlink(ctx, 7, "Temperature")
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	remaining, err := fixture.index.RangesForEntry(ctx, 7, "")
	if err != nil {
		t.Fatalf("RangesForEntry: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SensorType != "Gravity" {
		t.Errorf("remaining = %+v, want only Gravity", remaining)
	}

	removed, err = fixture.index.Unlink(ctx, 7, "")
	if err != nil || removed != 1 {
		t.Errorf("Unlink all = %d, %v; want 1", removed, err)
	}

	// Readings and other entries are untouched.
	if count := testutil.Count(t, fixture.pool, "SELECT COUNT(*) FROM readings"); count != 6 {
		t.Errorf("readings = %d, want 6", count)
	}
	other, err := fixture.index.ReadingsForEntry(ctx, ReadingsQuery{EntryID: 8})
	if err != nil || len(other) != 4 {
		t.Errorf("entry 8 readings = %d, %v; want 4", len(other), err)
	}
}

func TestSummary(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()
	fixture.appendReadings(t, "Temperature", 6) // 101-106
	fixture.appendReadings(t, "Gravity", 2)     // 107-108

	fixture.link(t, 7, "Temperature", 101, 104, sensor.LinkPrimary)
	fixture.link(t, 7, "Temperature", 103, 106, sensor.LinkSecondary)
	fixture.link(t, 7, "Gravity", 107, 108, sensor.LinkPrimary)

	summary, err := fixture.index.Summary(ctx, 7)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Ranges != 3 || summary.Readings != 8 {
		t.Errorf("totals = %d ranges, %d readings; want 3, 8", summary.Ranges, summary.Readings)
	}
	if len(summary.SensorTypes) != 2 {
		t.Fatalf("sensor types = %+v", summary.SensorTypes)
	}
	temperature := summary.SensorTypes[1]
	if temperature.SensorType != "Temperature" || temperature.Ranges != 2 || temperature.Readings != 6 {
		t.Errorf("temperature summary = %+v", temperature)
	}
	if temperature.FirstReadingID != 101 || temperature.LastReadingID != 106 {
		t.Errorf("temperature bounds = [%d,%d]", temperature.FirstReadingID, temperature.LastReadingID)
	}
	if !temperature.Earliest.Equal(indexTestEpoch) || !temperature.Latest.Equal(indexTestEpoch.Add(5*time.Minute)) {
		t.Errorf("temperature window = %v..%v", temperature.Earliest, temperature.Latest)
	}

	empty, err := fixture.index.Summary(ctx, 99)
	if err != nil || empty.Ranges != 0 || len(empty.SensorTypes) != 0 {
		t.Errorf("empty summary = %+v, %v", empty, err)
	}
}
