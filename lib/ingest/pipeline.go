// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
	"github.com/bureau-foundation/sensorlink/lib/metrics"
	"github.com/bureau-foundation/sensorlink/lib/readingstore"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Observer is told about every batch whose readings and links
// committed. Observers run synchronously after alert dispatch and must
// not fail the ingest; they log their own errors.
type Observer interface {
	ReadingsCommitted(ctx context.Context, entryIDs []int64, readings []sensor.Reading)
}

// Config holds the dependencies for New.
type Config struct {
	Pool     *sqlitepool.Pool
	Readings *readingstore.Store
	Links    *linkindex.Index
	Alerts   *alerting.Engine

	// Entries, when set, is consulted before anything is written:
	// unknown entries fail the ingest with a not_found error.
	Entries alerting.EntryRepository

	Observers []Observer
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Pipeline appends, links, and evaluates reading batches.
type Pipeline struct {
	pool      *sqlitepool.Pool
	readings  *readingstore.Store
	links     *linkindex.Index
	alerts    *alerting.Engine
	entries   alerting.EntryRepository
	observers []Observer
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// writeMu serializes append+link so identifier blocks from
	// different callers never interleave.
	writeMu sync.Mutex
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Pool == nil:
		return nil, fmt.Errorf("ingest pipeline: Pool is required")
	case cfg.Readings == nil:
		return nil, fmt.Errorf("ingest pipeline: Readings is required")
	case cfg.Links == nil:
		return nil, fmt.Errorf("ingest pipeline: Links is required")
	case cfg.Alerts == nil:
		return nil, fmt.Errorf("ingest pipeline: Alerts is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("ingest pipeline: Clock is required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("ingest pipeline: Logger is required")
	}
	return &Pipeline{
		pool:      cfg.Pool,
		readings:  cfg.Readings,
		links:     cfg.Links,
		alerts:    cfg.Alerts,
		entries:   cfg.Entries,
		observers: cfg.Observers,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Value is one value to ingest. A zero RecordedAt means now.
type Value struct {
	Value      sensor.Value   `json:"value"`
	RecordedAt time.Time      `json:"recorded_at,omitzero"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Source identifies where a batch came from. An empty Kind means
// manual.
type Source struct {
	Kind sensor.SourceKind `json:"kind"`
	ID   string            `json:"id,omitempty"`
}

// Request is one ingest call.
type Request struct {
	EntryIDs   []int64         `json:"entry_ids"`
	SensorType string          `json:"sensor_type"`
	Values     []Value         `json:"values"`
	LinkKind   sensor.LinkKind `json:"link_kind,omitempty"`
	Source     Source          `json:"source"`
	// RangeMetadata is stored on every created link range.
	RangeMetadata map[string]any `json:"range_metadata,omitempty"`
}

// Result reports what an ingest call wrote.
type Result struct {
	ReadingIDs []int64             `json:"reading_ids"`
	Ranges     []sensor.LinkRange  `json:"ranges_created"`
	Alerts     []sensor.AlertEvent `json:"alerts,omitempty"`
}

// Ingest appends req.Values, links them to every entry in
// req.EntryIDs, and evaluates alert rules.
//
// On a linking failure the error is returned together with a Result
// whose ReadingIDs lists the readings that were appended (and remain
// stored) but not linked.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Result, error) {
	started := p.clock.Now()
	result, err := p.ingest(ctx, req)
	if err != nil {
		p.metrics.IngestFailed(string(fault.CategoryOf(err)))
		return result, err
	}
	p.metrics.IngestSucceeded(string(req.Source.Kind), len(result.ReadingIDs), len(result.Ranges), p.clock.Now().Sub(started))
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, req Request) (Result, error) {
	req, err := p.normalize(ctx, req)
	if err != nil {
		return Result{}, err
	}

	batch := make([]readingstore.NewReading, len(req.Values))
	for index, value := range req.Values {
		batch[index] = readingstore.NewReading{
			SensorType: req.SensorType,
			Value:      value.Value,
			RecordedAt: value.RecordedAt,
			SourceKind: req.Source.Kind,
			SourceID:   req.Source.ID,
			Metadata:   value.Metadata,
		}
	}

	plan := p.alerts.Prepare(ctx, req.SensorType, req.EntryIDs)

	p.writeMu.Lock()
	ids, err := p.readings.AppendBatch(ctx, batch)
	if err != nil {
		p.writeMu.Unlock()
		return Result{}, fmt.Errorf("ingest: append: %w", err)
	}
	result := Result{ReadingIDs: ids}

	err = p.pool.Write(ctx, func(conn *sqlite.Conn) error {
		result.Ranges = result.Ranges[:0]
		result.Alerts = result.Alerts[:0]
		for _, entryID := range req.EntryIDs {
			created, err := p.links.LinkTx(conn, linkindex.LinkRequest{
				EntryID:    entryID,
				SensorType: req.SensorType,
				ReadingIDs: ids,
				Kind:       req.LinkKind,
				Metadata:   req.RangeMetadata,
			})
			if err != nil {
				return err
			}
			result.Ranges = append(result.Ranges, created)
		}

		history := alerting.ConnHistory(conn)
		for index, value := range req.Values {
			for _, entryID := range req.EntryIDs {
				fired := plan.Evaluate(history, alerting.Input{
					EntryID:    entryID,
					SensorType: req.SensorType,
					Value:      value.Value,
					RecordedAt: batch[index].RecordedAt,
				})
				result.Alerts = append(result.Alerts, fired...)
			}
		}
		return nil
	})
	p.writeMu.Unlock()
	if err != nil {
		p.logger.Warn("readings appended but not linked",
			"sensor_type", req.SensorType,
			"first_id", ids[0],
			"last_id", ids[len(ids)-1],
			"error", err,
		)
		return Result{ReadingIDs: ids}, fmt.Errorf("ingest: link: %w", err)
	}

	p.logger.Info("readings ingested",
		"sensor_type", req.SensorType,
		"source_kind", req.Source.Kind,
		"source_id", req.Source.ID,
		"readings", len(ids),
		"entries", len(req.EntryIDs),
		"alerts", len(result.Alerts),
	)

	if len(result.Alerts) > 0 {
		p.alerts.Dispatch(ctx, result.Alerts)
	}
	if len(p.observers) > 0 {
		committed := make([]sensor.Reading, len(ids))
		for index, id := range ids {
			committed[index] = sensor.Reading{
				ID:         id,
				SensorType: req.SensorType,
				Value:      req.Values[index].Value,
				RecordedAt: batch[index].RecordedAt,
				SourceKind: req.Source.Kind,
				SourceID:   req.Source.ID,
				Metadata:   req.Values[index].Metadata,
			}
		}
		for _, observer := range p.observers {
			observer.ReadingsCommitted(ctx, req.EntryIDs, committed)
		}
	}
	return result, nil
}

// normalize validates req and fills defaults: trimmed sensor type,
// deduplicated entries, manual source, primary link kind, and
// recorded_at stamped from the clock.
func (p *Pipeline) normalize(ctx context.Context, req Request) (Request, error) {
	if len(req.EntryIDs) == 0 {
		return req, fault.Validation("ingest: entry_ids is empty")
	}
	if len(req.Values) == 0 {
		return req, fault.Validation("ingest: values is empty")
	}
	req.SensorType = strings.TrimSpace(req.SensorType)
	if req.SensorType == "" {
		return req, fault.Validation("ingest: sensor_type is required")
	}
	kind, err := sensor.ParseLinkKind(string(req.LinkKind))
	if err != nil {
		return req, fault.Validation("ingest: %v", err)
	}
	req.LinkKind = kind
	if req.Source.Kind == "" {
		req.Source.Kind = sensor.SourceManual
	}
	if !req.Source.Kind.Valid() {
		return req, fault.Validation("ingest: unknown source kind %q", req.Source.Kind)
	}

	seen := make(map[int64]bool, len(req.EntryIDs))
	entries := make([]int64, 0, len(req.EntryIDs))
	for _, entryID := range req.EntryIDs {
		if entryID <= 0 {
			return req, fault.Validation("ingest: entry id must be positive, got %d", entryID)
		}
		if !seen[entryID] {
			seen[entryID] = true
			entries = append(entries, entryID)
		}
	}
	req.EntryIDs = entries

	now := p.clock.Now()
	values := make([]Value, len(req.Values))
	for index, value := range req.Values {
		if value.Value.IsEmpty() {
			return req, fault.Validation("ingest: value %d is empty", index)
		}
		if value.RecordedAt.IsZero() {
			value.RecordedAt = now
		}
		values[index] = value
	}
	req.Values = values

	if p.entries != nil {
		for _, entryID := range req.EntryIDs {
			if _, err := p.entries.LookupEntry(ctx, entryID); err != nil {
				if fault.Is(err, fault.CategoryNotFound) {
					return req, err
				}
				return req, fmt.Errorf("ingest: looking up entry %d: %w", entryID, err)
			}
		}
	}
	return req, nil
}
