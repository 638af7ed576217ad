// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readingstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/codec"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Schema creates the readings table. The value column deliberately
// has no type so SQLite keeps REAL and TEXT values as written.
const Schema = `
CREATE TABLE IF NOT EXISTS readings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_type TEXT NOT NULL,
	value       NOT NULL,
	recorded_at INTEGER NOT NULL,
	source_kind TEXT NOT NULL,
	source_id   TEXT,
	metadata    BLOB
);

CREATE INDEX IF NOT EXISTS idx_readings_type_time
	ON readings (sensor_type, recorded_at);
`

// readingColumns is the select list understood by scanReading.
const readingColumns = "id, sensor_type, value, recorded_at, source_kind, source_id, metadata"

// NewReading is the input to Append. RecordedAt defaults to the store
// clock's current time and SourceKind defaults to manual.
type NewReading struct {
	SensorType string
	Value      sensor.Value
	RecordedAt time.Time
	SourceKind sensor.SourceKind
	SourceID   string
	Metadata   map[string]any
}

// Config holds the dependencies for New.
type Config struct {
	Pool   *sqlitepool.Pool
	Clock  clock.Clock
	Logger *slog.Logger
}

// Store appends and reads sensor readings.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Store over a pool whose schema includes [Schema].
func New(cfg Config) (*Store, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("reading store: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("reading store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("reading store: Logger is required")
	}
	return &Store{pool: cfg.Pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Append stores one reading and returns its identifier.
func (s *Store) Append(ctx context.Context, reading NewReading) (int64, error) {
	ids, err := s.AppendBatch(ctx, []NewReading{reading})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AppendBatch stores readings in one transaction and returns their
// identifiers in input order. The identifiers are contiguous and
// increasing. Validation runs before anything is written, so an
// invalid reading anywhere in the batch stores nothing.
func (s *Store) AppendBatch(ctx context.Context, readings []NewReading) ([]int64, error) {
	if len(readings) == 0 {
		return nil, fault.Validation("reading store: batch is empty")
	}
	prepared, err := s.prepare(readings)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		ids, err = insertReadings(conn, prepared)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("readings appended",
		"count", len(ids),
		"first_id", ids[0],
		"last_id", ids[len(ids)-1],
	)
	return ids, nil
}

type preparedReading struct {
	NewReading
	metadata []byte
}

func (s *Store) prepare(readings []NewReading) ([]preparedReading, error) {
	now := s.clock.Now()
	prepared := make([]preparedReading, len(readings))
	for index, reading := range readings {
		reading.SensorType = strings.TrimSpace(reading.SensorType)
		if reading.SensorType == "" {
			return nil, fault.Validation("reading store: reading %d: sensor_type is required", index)
		}
		if reading.Value.IsEmpty() {
			return nil, fault.Validation("reading store: reading %d: value is required", index)
		}
		if reading.SourceKind == "" {
			reading.SourceKind = sensor.SourceManual
		}
		if !reading.SourceKind.Valid() {
			return nil, fault.Validation("reading store: reading %d: unknown source kind %q", index, reading.SourceKind)
		}
		if reading.RecordedAt.IsZero() {
			reading.RecordedAt = now
		}
		metadata, err := codec.EncodeMetadata(reading.Metadata)
		if err != nil {
			return nil, fault.Validation("reading store: reading %d: %v", index, err)
		}
		prepared[index] = preparedReading{NewReading: reading, metadata: metadata}
	}
	return prepared, nil
}

func insertReadings(conn *sqlite.Conn, readings []preparedReading) ([]int64, error) {
	ids := make([]int64, 0, len(readings))
	for _, reading := range readings {
		err := sqlitex.Execute(conn,
			`INSERT INTO readings (sensor_type, value, recorded_at, source_kind, source_id, metadata)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					reading.SensorType,
					bindValue(reading.Value),
					reading.RecordedAt.UnixNano(),
					string(reading.SourceKind),
					sqlitepool.NullableText(reading.SourceID),
					sqlitepool.NullableBlob(reading.metadata),
				},
			})
		if err != nil {
			return nil, fmt.Errorf("reading store: insert: %w", err)
		}
		ids = append(ids, conn.LastInsertRowID())
	}
	return ids, nil
}

func bindValue(value sensor.Value) any {
	if number, ok := value.Float(); ok {
		return number
	}
	return value.String()
}

// Get returns the reading with the given identifier.
func (s *Store) Get(ctx context.Context, id int64) (sensor.Reading, error) {
	var found []sensor.Reading
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		found, err = query(conn, "SELECT "+readingColumns+" FROM readings WHERE id = ?", id)
		return err
	})
	if err != nil {
		return sensor.Reading{}, err
	}
	if len(found) == 0 {
		return sensor.Reading{}, fault.NotFound("reading store: reading %d not found", id)
	}
	return found[0], nil
}

// GetRange returns the readings with identifiers in [start, end] in
// ascending identifier order.
func (s *Store) GetRange(ctx context.Context, start, end int64) ([]sensor.Reading, error) {
	if end < start {
		return nil, fault.Validation("reading store: range end %d before start %d", end, start)
	}
	var readings []sensor.Reading
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		readings, err = query(conn,
			"SELECT "+readingColumns+" FROM readings WHERE id BETWEEN ? AND ? ORDER BY id",
			start, end)
		return err
	})
	return readings, err
}

// TimeQuery selects readings by sensor type and time window. Zero
// Since or Until leave that side of the window open.
type TimeQuery struct {
	SensorType string
	Since      time.Time
	Until      time.Time
	SourceID   string
	// Limit caps the result. Zero means 100; the maximum is 10000.
	Limit int
}

// ByTypeAndTime returns matching readings, newest first.
func (s *Store) ByTypeAndTime(ctx context.Context, filter TimeQuery) ([]sensor.Reading, error) {
	if strings.TrimSpace(filter.SensorType) == "" {
		return nil, fault.Validation("reading store: sensor_type is required")
	}

	conditions := []string{"sensor_type = ?"}
	args := []any{filter.SensorType}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, filter.Until.UnixNano())
	}
	if filter.SourceID != "" {
		conditions = append(conditions, "source_id = ?")
		args = append(args, filter.SourceID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 10000 {
		limit = 10000
	}
	args = append(args, limit)

	statement := "SELECT " + readingColumns + " FROM readings WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY recorded_at DESC, id DESC LIMIT ?"

	var readings []sensor.Reading
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		readings, err = query(conn, statement, args...)
		return err
	})
	return readings, err
}

// CountRange returns how many readings of sensorType exist with
// identifiers in [start, end]. An empty sensorType counts every type.
// Callers inside a transaction pass their own connection.
func CountRange(conn *sqlite.Conn, sensorType string, start, end int64) (int64, error) {
	if sensorType == "" {
		return sqlitepool.QueryInt64(conn,
			"SELECT COUNT(*) FROM readings WHERE id BETWEEN ? AND ?", start, end)
	}
	return sqlitepool.QueryInt64(conn,
		"SELECT COUNT(*) FROM readings WHERE id BETWEEN ? AND ? AND sensor_type = ?",
		start, end, sensorType)
}

// Query runs a statement whose select list begins with the reading
// columns ("r." prefixed or not) and scans each row into a Reading.
// The link index uses it for its join queries.
func Query(conn *sqlite.Conn, statement string, args ...any) ([]sensor.Reading, error) {
	return query(conn, statement, args...)
}

// Columns returns the reading select list with each column qualified
// by alias.
func Columns(alias string) string {
	columns := strings.Split(readingColumns, ", ")
	for index, column := range columns {
		columns[index] = alias + "." + column
	}
	return strings.Join(columns, ", ")
}

func query(conn *sqlite.Conn, statement string, args ...any) ([]sensor.Reading, error) {
	var readings []sensor.Reading
	err := sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			reading, err := scanReading(stmt)
			if err != nil {
				return err
			}
			readings = append(readings, reading)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading store: query: %w", err)
	}
	return readings, nil
}

func scanReading(stmt *sqlite.Stmt) (sensor.Reading, error) {
	reading := sensor.Reading{
		ID:         stmt.ColumnInt64(0),
		SensorType: stmt.ColumnText(1),
		RecordedAt: time.Unix(0, stmt.ColumnInt64(3)).UTC(),
		SourceKind: sensor.SourceKind(stmt.ColumnText(4)),
		SourceID:   sqlitepool.ColumnNullableText(stmt, 5),
	}
	switch stmt.ColumnType(2) {
	case sqlite.TypeFloat:
		reading.Value = sensor.Number(stmt.ColumnFloat(2))
	case sqlite.TypeInteger:
		reading.Value = sensor.Number(float64(stmt.ColumnInt64(2)))
	default:
		reading.Value = sensor.Text(stmt.ColumnText(2))
	}
	metadata, err := codec.DecodeMetadata(sqlitepool.ColumnBlob(stmt, 6))
	if err != nil {
		return sensor.Reading{}, fault.DataIntegrity("reading store: reading %d metadata: %v", reading.ID, err)
	}
	reading.Metadata = metadata
	return reading, nil
}
