// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linkindex

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SensorSummary describes the readings one entry has for one sensor
// type.
type SensorSummary struct {
	SensorType string `json:"sensor_type"`
	Ranges     int    `json:"ranges"`
	// FirstReadingID and LastReadingID bound every range of this type.
	FirstReadingID int64 `json:"first_reading_id"`
	LastReadingID  int64 `json:"last_reading_id"`
	// Readings counts distinct linked readings, so overlapping ranges
	// are not double counted.
	Readings int64     `json:"readings"`
	Earliest time.Time `json:"earliest,omitzero"`
	Latest   time.Time `json:"latest,omitzero"`
}

// Summary describes everything linked to one entry.
type Summary struct {
	EntryID     int64           `json:"entry_id"`
	Ranges      int             `json:"ranges"`
	Readings    int64           `json:"readings"`
	SensorTypes []SensorSummary `json:"sensor_types"`
}

// Summary returns per-sensor-type statistics for an entry, ordered by
// sensor type. An entry with no ranges yields an empty summary.
func (x *Index) Summary(ctx context.Context, entryID int64) (Summary, error) {
	summary := Summary{EntryID: entryID}
	err := x.pool.Read(ctx, func(conn *sqlite.Conn) error {
		byType := make(map[string]int)
		err := sqlitex.Execute(conn,
			`SELECT sensor_type, COUNT(*), MIN(start_reading_id), MAX(end_reading_id)
			 FROM link_ranges WHERE entry_id = ?
			 GROUP BY sensor_type ORDER BY sensor_type`,
			&sqlitex.ExecOptions{
				Args: []any{entryID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					byType[stmt.ColumnText(0)] = len(summary.SensorTypes)
					summary.SensorTypes = append(summary.SensorTypes, SensorSummary{
						SensorType:     stmt.ColumnText(0),
						Ranges:         stmt.ColumnInt(1),
						FirstReadingID: stmt.ColumnInt64(2),
						LastReadingID:  stmt.ColumnInt64(3),
					})
					summary.Ranges += stmt.ColumnInt(1)
					return nil
				},
			})
		if err != nil {
			return err
		}

		return sqlitex.Execute(conn,
			`SELECT r.sensor_type, COUNT(DISTINCT r.id), MIN(r.recorded_at), MAX(r.recorded_at)
			 FROM link_ranges l
			 JOIN readings r
			   ON r.id BETWEEN l.start_reading_id AND l.end_reading_id
			  AND r.sensor_type = l.sensor_type
			 WHERE l.entry_id = ?
			 GROUP BY r.sensor_type`,
			&sqlitex.ExecOptions{
				Args: []any{entryID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					index, ok := byType[stmt.ColumnText(0)]
					if !ok {
						return nil
					}
					sensorSummary := &summary.SensorTypes[index]
					sensorSummary.Readings = stmt.ColumnInt64(1)
					sensorSummary.Earliest = time.Unix(0, stmt.ColumnInt64(2)).UTC()
					sensorSummary.Latest = time.Unix(0, stmt.ColumnInt64(3)).UTC()
					summary.Readings += sensorSummary.Readings
					return nil
				},
			})
	})
	if err != nil {
		return Summary{}, fmt.Errorf("link index: summary for entry %d: %w", entryID, err)
	}
	return summary, nil
}
