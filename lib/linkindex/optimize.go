// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linkindex

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/codec"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// MergedMetadataKey is set to true in the metadata of a range that
// absorbed at least one other range.
const MergedMetadataKey = "merged"

// Merge compacts ranges that share a sensor type and link kind and
// that overlap or touch (next.start <= current.end + 1). The result
// covers exactly the same (entry, sensor type, reading id) triples as
// the input. Metadata of absorbed ranges is unioned into the survivor,
// later ranges winning on conflicting keys, and the survivor is marked
// with [MergedMetadataKey]. Each survivor keeps the ID of the
// lowest-starting range of its cluster.
//
// Ranges of different link kinds are never merged with each other.
// The output is ordered by entry, sensor type, link kind, and start.
// Merge is idempotent: merging its own output changes nothing.
func Merge(ranges []sensor.LinkRange) []sensor.LinkRange {
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b sensor.LinkRange) int {
		return cmp.Or(
			cmp.Compare(a.EntryID, b.EntryID),
			cmp.Compare(a.SensorType, b.SensorType),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.StartReadingID, b.StartReadingID),
			cmp.Compare(a.EndReadingID, b.EndReadingID),
			cmp.Compare(a.ID, b.ID),
		)
	})

	var merged []sensor.LinkRange
	for _, next := range sorted {
		if len(merged) > 0 {
			current := &merged[len(merged)-1]
			if sameGroup(*current, next) && next.StartReadingID <= current.EndReadingID+1 {
				current.EndReadingID = max(current.EndReadingID, next.EndReadingID)
				metadata := codec.MergeMetadata(current.Metadata, next.Metadata)
				if metadata == nil {
					metadata = make(map[string]any, 1)
				}
				metadata[MergedMetadataKey] = true
				current.Metadata = metadata
				continue
			}
		}
		merged = append(merged, next)
	}
	return merged
}

func sameGroup(a, b sensor.LinkRange) bool {
	return a.EntryID == b.EntryID && a.SensorType == b.SensorType && a.Kind == b.Kind
}

// GroupResult reports optimization of one (sensor type, link kind)
// group.
type GroupResult struct {
	SensorType   string          `json:"sensor_type"`
	Kind         sensor.LinkKind `json:"link_kind"`
	RangesBefore int             `json:"ranges_before"`
	RangesAfter  int             `json:"ranges_after"`
}

// OptimizeResult reports what Optimize did.
type OptimizeResult struct {
	EntryID      int64         `json:"entry_id"`
	RangesBefore int           `json:"ranges_before"`
	RangesAfter  int           `json:"ranges_after"`
	Groups       []GroupResult `json:"groups,omitempty"`
}

// Optimize merges the entry's adjacent and overlapping ranges (see
// [Merge]) in one transaction. Groups that cannot be compacted are
// left untouched, so running Optimize twice is a no-op the second
// time.
func (x *Index) Optimize(ctx context.Context, entryID int64) (OptimizeResult, error) {
	result := OptimizeResult{EntryID: entryID}
	err := x.pool.Write(ctx, func(conn *sqlite.Conn) error {
		ranges, err := rangesForEntry(conn, entryID, "")
		if err != nil {
			return err
		}
		result.RangesBefore = len(ranges)

		for _, group := range groupRanges(ranges) {
			merged := Merge(group)
			result.Groups = append(result.Groups, GroupResult{
				SensorType:   group[0].SensorType,
				Kind:         group[0].Kind,
				RangesBefore: len(group),
				RangesAfter:  len(merged),
			})
			result.RangesAfter += len(merged)
			if len(merged) == len(group) {
				continue
			}
			if err := rewriteGroup(conn, group, merged); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("link index: optimize entry %d: %w", entryID, err)
	}

	x.logger.Info("entry ranges optimized",
		"entry_id", entryID,
		"ranges_before", result.RangesBefore,
		"ranges_after", result.RangesAfter,
	)
	return result, nil
}

// groupRanges splits ranges (already ordered by sensor type and link
// kind) into runs sharing both.
func groupRanges(ranges []sensor.LinkRange) [][]sensor.LinkRange {
	var groups [][]sensor.LinkRange
	for index, linkRange := range ranges {
		if index == 0 || !sameGroup(ranges[index-1], linkRange) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], linkRange)
	}
	return groups
}

// rewriteGroup updates each survivor in place and deletes the ranges
// it absorbed.
func rewriteGroup(conn *sqlite.Conn, group, merged []sensor.LinkRange) error {
	survivors := make(map[int64]bool, len(merged))
	for _, linkRange := range merged {
		survivors[linkRange.ID] = true
		metadata, err := codec.EncodeMetadata(linkRange.Metadata)
		if err != nil {
			return fmt.Errorf("encoding range %d metadata: %w", linkRange.ID, err)
		}
		err = sqlitex.Execute(conn,
			"UPDATE link_ranges SET end_reading_id = ?, metadata = ? WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{linkRange.EndReadingID, sqlitepool.NullableBlob(metadata), linkRange.ID},
			})
		if err != nil {
			return fmt.Errorf("updating range %d: %w", linkRange.ID, err)
		}
	}
	for _, linkRange := range group {
		if survivors[linkRange.ID] {
			continue
		}
		err := sqlitex.Execute(conn, "DELETE FROM link_ranges WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{linkRange.ID},
		})
		if err != nil {
			return fmt.Errorf("deleting range %d: %w", linkRange.ID, err)
		}
	}
	return nil
}
