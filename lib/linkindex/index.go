// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linkindex

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/codec"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/readingstore"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Schema creates the link_ranges table. It must be applied after
// [readingstore.Schema].
const Schema = `
CREATE TABLE IF NOT EXISTS link_ranges (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id         INTEGER NOT NULL,
	sensor_type      TEXT NOT NULL,
	start_reading_id INTEGER NOT NULL,
	end_reading_id   INTEGER NOT NULL,
	link_kind        TEXT NOT NULL,
	metadata         BLOB,
	created_at       INTEGER NOT NULL,
	CHECK (end_reading_id >= start_reading_id)
);

CREATE INDEX IF NOT EXISTS idx_link_ranges_entry
	ON link_ranges (entry_id, sensor_type, start_reading_id);

CREATE INDEX IF NOT EXISTS idx_link_ranges_span
	ON link_ranges (start_reading_id, end_reading_id);
`

const rangeColumns = "id, entry_id, sensor_type, start_reading_id, end_reading_id, link_kind, metadata"

// Config holds the dependencies for New.
type Config struct {
	Pool   *sqlitepool.Pool
	Clock  clock.Clock
	Logger *slog.Logger
}

// Index stores and queries link ranges.
type Index struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// New creates an Index over a pool whose schema includes both
// [readingstore.Schema] and [Schema].
func New(cfg Config) (*Index, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("link index: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("link index: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("link index: Logger is required")
	}
	return &Index{pool: cfg.Pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// LinkRequest describes one range to create. ReadingIDs must form a
// contiguous set; order and duplicates do not matter. An empty Kind
// means primary.
type LinkRequest struct {
	EntryID    int64
	SensorType string
	ReadingIDs []int64
	Kind       sensor.LinkKind
	Metadata   map[string]any
}

// Link creates one range covering req.ReadingIDs in its own
// transaction.
func (x *Index) Link(ctx context.Context, req LinkRequest) (sensor.LinkRange, error) {
	var created sensor.LinkRange
	err := x.pool.Write(ctx, func(conn *sqlite.Conn) error {
		var err error
		created, err = x.LinkTx(conn, req)
		return err
	})
	return created, err
}

// LinkTx creates one range using conn, which must be inside a write
// transaction.
func (x *Index) LinkTx(conn *sqlite.Conn, req LinkRequest) (sensor.LinkRange, error) {
	linkRange, err := validateLink(req)
	if err != nil {
		return sensor.LinkRange{}, err
	}

	present, err := readingstore.CountRange(conn, linkRange.SensorType, linkRange.StartReadingID, linkRange.EndReadingID)
	if err != nil {
		return sensor.LinkRange{}, fmt.Errorf("link index: checking readings: %w", err)
	}
	if present != linkRange.Span() {
		return sensor.LinkRange{}, fault.DataIntegrity(
			"link index: range [%d,%d] covers %d %s readings, want %d",
			linkRange.StartReadingID, linkRange.EndReadingID, present, linkRange.SensorType, linkRange.Span())
	}

	metadata, err := codec.EncodeMetadata(linkRange.Metadata)
	if err != nil {
		return sensor.LinkRange{}, fault.Validation("link index: %v", err)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO link_ranges (entry_id, sensor_type, start_reading_id, end_reading_id, link_kind, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				linkRange.EntryID,
				linkRange.SensorType,
				linkRange.StartReadingID,
				linkRange.EndReadingID,
				string(linkRange.Kind),
				sqlitepool.NullableBlob(metadata),
				x.clock.Now().UnixNano(),
			},
		})
	if err != nil {
		return sensor.LinkRange{}, fmt.Errorf("link index: insert: %w", err)
	}
	linkRange.ID = conn.LastInsertRowID()

	x.logger.Debug("link range created",
		"range_id", linkRange.ID,
		"entry_id", linkRange.EntryID,
		"sensor_type", linkRange.SensorType,
		"start", linkRange.StartReadingID,
		"end", linkRange.EndReadingID,
		"link_kind", linkRange.Kind,
	)
	return linkRange, nil
}

func validateLink(req LinkRequest) (sensor.LinkRange, error) {
	if req.EntryID <= 0 {
		return sensor.LinkRange{}, fault.Validation("link index: entry id must be positive, got %d", req.EntryID)
	}
	sensorType := strings.TrimSpace(req.SensorType)
	if sensorType == "" {
		return sensor.LinkRange{}, fault.Validation("link index: sensor_type is required")
	}
	if len(req.ReadingIDs) == 0 {
		return sensor.LinkRange{}, fault.Validation("link index: no reading ids to link")
	}
	kind, err := sensor.ParseLinkKind(string(req.Kind))
	if err != nil {
		return sensor.LinkRange{}, fault.Validation("link index: %v", err)
	}

	ids := slices.Clone(req.ReadingIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	start, end := ids[0], ids[len(ids)-1]
	if start <= 0 {
		return sensor.LinkRange{}, fault.Validation("link index: reading id %d is not valid", start)
	}
	if int64(len(ids)) != end-start+1 {
		return sensor.LinkRange{}, fault.Validation(
			"link index: reading ids are not contiguous (%d distinct ids between %d and %d)", len(ids), start, end)
	}

	return sensor.LinkRange{
		EntryID:        req.EntryID,
		SensorType:     sensorType,
		StartReadingID: start,
		EndReadingID:   end,
		Kind:           kind,
		Metadata:       req.Metadata,
	}, nil
}

// ReadingsQuery selects the readings linked to one entry. Limit zero
// means no limit.
type ReadingsQuery struct {
	EntryID    int64
	SensorType string
	Limit      int
	Offset     int
}

// ReadingsForEntry returns the union of readings covered by the
// entry's ranges, each reading once, newest recorded_at first.
func (x *Index) ReadingsForEntry(ctx context.Context, query ReadingsQuery) ([]sensor.Reading, error) {
	if query.Limit < 0 || query.Offset < 0 {
		return nil, fault.Validation("link index: limit and offset must not be negative")
	}

	conditions := []string{"l.entry_id = ?"}
	args := []any{query.EntryID}
	if query.SensorType != "" {
		conditions = append(conditions, "l.sensor_type = ?")
		args = append(args, query.SensorType)
	}
	limit := int64(-1)
	if query.Limit > 0 {
		limit = int64(query.Limit)
	}
	args = append(args, limit, query.Offset)

	statement := "SELECT DISTINCT " + readingstore.Columns("r") + `
		FROM link_ranges l
		JOIN readings r
		  ON r.id BETWEEN l.start_reading_id AND l.end_reading_id
		 AND r.sensor_type = l.sensor_type
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY r.recorded_at DESC, r.id DESC
		LIMIT ? OFFSET ?`

	var readings []sensor.Reading
	err := x.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		readings, err = readingstore.Query(conn, statement, args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("link index: readings for entry %d: %w", query.EntryID, err)
	}
	return readings, nil
}

// EntriesForRange returns, in ascending order, every entry with a
// range overlapping [start, end].
func (x *Index) EntriesForRange(ctx context.Context, start, end int64) ([]int64, error) {
	if end < start {
		return nil, fault.Validation("link index: range end %d before start %d", end, start)
	}
	var entries []int64
	err := x.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT DISTINCT entry_id FROM link_ranges
			 WHERE start_reading_id <= ? AND end_reading_id >= ?
			 ORDER BY entry_id`,
			&sqlitex.ExecOptions{
				Args: []any{end, start},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entries = append(entries, stmt.ColumnInt64(0))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("link index: entries for range: %w", err)
	}
	return entries, nil
}

// RangesOverlapping returns the ranges overlapping [start, end],
// ordered by entry, sensor type, and start.
func (x *Index) RangesOverlapping(ctx context.Context, start, end int64) ([]sensor.LinkRange, error) {
	if end < start {
		return nil, fault.Validation("link index: range end %d before start %d", end, start)
	}
	var ranges []sensor.LinkRange
	err := x.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		ranges, err = queryRanges(conn,
			"SELECT "+rangeColumns+` FROM link_ranges
			 WHERE start_reading_id <= ? AND end_reading_id >= ?
			 ORDER BY entry_id, sensor_type, start_reading_id, id`,
			end, start)
		return err
	})
	return ranges, err
}

// RangesForEntry returns the entry's ranges, optionally restricted to
// one sensor type, ordered by sensor type, link kind, and start.
func (x *Index) RangesForEntry(ctx context.Context, entryID int64, sensorType string) ([]sensor.LinkRange, error) {
	var ranges []sensor.LinkRange
	err := x.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		ranges, err = rangesForEntry(conn, entryID, sensorType)
		return err
	})
	return ranges, err
}

func rangesForEntry(conn *sqlite.Conn, entryID int64, sensorType string) ([]sensor.LinkRange, error) {
	conditions := []string{"entry_id = ?"}
	args := []any{entryID}
	if sensorType != "" {
		conditions = append(conditions, "sensor_type = ?")
		args = append(args, sensorType)
	}
	return queryRanges(conn,
		"SELECT "+rangeColumns+" FROM link_ranges WHERE "+strings.Join(conditions, " AND ")+
			" ORDER BY sensor_type, link_kind, start_reading_id, end_reading_id, id",
		args...)
}

// Unlink deletes the entry's ranges, optionally only those of one
// sensor type, and returns how many were removed. Readings are not
// touched.
func (x *Index) Unlink(ctx context.Context, entryID int64, sensorType string) (int, error) {
	conditions := []string{"entry_id = ?"}
	args := []any{entryID}
	if sensorType != "" {
		conditions = append(conditions, "sensor_type = ?")
		args = append(args, sensorType)
	}

	var removed int
	err := x.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"DELETE FROM link_ranges WHERE "+strings.Join(conditions, " AND "),
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return fmt.Errorf("link index: unlink: %w", err)
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, err
	}

	x.logger.Info("entry unlinked",
		"entry_id", entryID,
		"sensor_type", sensorType,
		"ranges_removed", removed,
	)
	return removed, nil
}

func queryRanges(conn *sqlite.Conn, statement string, args ...any) ([]sensor.LinkRange, error) {
	var ranges []sensor.LinkRange
	err := sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			linkRange := sensor.LinkRange{
				ID:             stmt.ColumnInt64(0),
				EntryID:        stmt.ColumnInt64(1),
				SensorType:     stmt.ColumnText(2),
				StartReadingID: stmt.ColumnInt64(3),
				EndReadingID:   stmt.ColumnInt64(4),
				Kind:           sensor.LinkKind(stmt.ColumnText(5)),
			}
			metadata, err := codec.DecodeMetadata(sqlitepool.ColumnBlob(stmt, 6))
			if err != nil {
				return fault.DataIntegrity("link index: range %d metadata: %v", linkRange.ID, err)
			}
			linkRange.Metadata = metadata
			ranges = append(ranges, linkRange)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("link index: query ranges: %w", err)
	}
	return ranges, nil
}
