// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// DefaultMeasurement is used when Config.Measurement is empty.
const DefaultMeasurement = "sensor_readings"

// Config configures a Mirror.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Measurement names the InfluxDB measurement.
	Measurement string

	// Timeout bounds each write. Zero means 5 seconds.
	Timeout time.Duration

	Logger *slog.Logger
}

// Mirror is an ingest observer that writes one point per committed
// reading.
type Mirror struct {
	client      influxdb2.Client
	writer      api.WriteAPIBlocking
	measurement string
	timeout     time.Duration
	logger      *slog.Logger
}

// New connects a Mirror. No request is made until the first write.
func New(cfg Config) (*Mirror, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mirror: URL is required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror: Org and Bucket are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("mirror: Logger is required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	options := influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds() + 0.5))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)
	return &Mirror{
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}, nil
}

// ReadingsCommitted writes readings to InfluxDB. Each point is tagged
// with its sensor type and source, and carries the reading identifier
// and the linked entries as fields so dashboards can join back to
// the store.
func (m *Mirror) ReadingsCommitted(ctx context.Context, entryIDs []int64, readings []sensor.Reading) {
	if len(readings) == 0 {
		return
	}
	points := make([]*write.Point, 0, len(readings))
	entries := joinIDs(entryIDs)
	for _, reading := range readings {
		points = append(points, m.point(reading, entries))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := m.writer.WritePoint(ctx, points...); err != nil {
		m.logger.Warn("mirror write failed",
			"readings", len(readings),
			"first_id", readings[0].ID,
			"error", err,
		)
		return
	}
	m.logger.Debug("readings mirrored", "count", len(points))
}

func (m *Mirror) point(reading sensor.Reading, entries string) *write.Point {
	tags := map[string]string{
		"sensor_type": reading.SensorType,
		"source_kind": string(reading.SourceKind),
	}
	if reading.SourceID != "" {
		tags["source_id"] = reading.SourceID
	}
	fields := map[string]any{
		"reading_id": reading.ID,
		"entry_ids":  entries,
	}
	if number, ok := reading.Value.Float(); ok {
		fields["value"] = number
	} else {
		fields["value_text"] = reading.Value.String()
	}
	if unit, ok := reading.Metadata["unit"].(string); ok && unit != "" {
		tags["unit"] = unit
	}
	return influxdb2.NewPoint(m.measurement, tags, fields, reading.RecordedAt)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for index, id := range ids {
		parts[index] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Close releases the client's idle connections.
func (m *Mirror) Close() {
	m.client.Close()
}
