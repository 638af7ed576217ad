// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package alerting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Schema creates the alert_events table that backs [ConnHistory].
const Schema = `
CREATE TABLE IF NOT EXISTS alert_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_id      INTEGER NOT NULL,
	entry_id     INTEGER NOT NULL,
	sensor_type  TEXT NOT NULL,
	value        NOT NULL,
	triggered_at INTEGER NOT NULL,
	priority     TEXT,
	title        TEXT,
	message      TEXT
);

CREATE INDEX IF NOT EXISTS idx_alert_events_rule_entry
	ON alert_events (rule_id, entry_id, triggered_at);
`

// History remembers emitted events for cooldown checks.
type History interface {
	// LastTriggered returns the latest TriggeredAt recorded for the
	// (rule, entry) pair. ok is false when the pair never fired.
	LastTriggered(ruleID, entryID int64) (last time.Time, ok bool, err error)

	// Record stores an emitted event.
	Record(event sensor.AlertEvent) error
}

// ConnHistory returns a History that reads and writes alert_events
// through conn, so recorded events commit or roll back with the
// caller's transaction.
func ConnHistory(conn *sqlite.Conn) History {
	return connHistory{conn: conn}
}

type connHistory struct {
	conn *sqlite.Conn
}

func (h connHistory) LastTriggered(ruleID, entryID int64) (time.Time, bool, error) {
	var last time.Time
	var found bool
	err := sqlitex.Execute(h.conn,
		"SELECT MAX(triggered_at) FROM alert_events WHERE rule_id = ? AND entry_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{ruleID, entryID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if stmt.ColumnType(0) == sqlite.TypeNull {
					return nil
				}
				last = time.Unix(0, stmt.ColumnInt64(0)).UTC()
				found = true
				return nil
			},
		})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("alert history: last triggered: %w", err)
	}
	return last, found, nil
}

func (h connHistory) Record(event sensor.AlertEvent) error {
	var value any = event.Value.String()
	if number, ok := event.Value.Float(); ok {
		value = number
	}
	err := sqlitex.Execute(h.conn,
		`INSERT INTO alert_events (rule_id, entry_id, sensor_type, value, triggered_at, priority, title, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				event.RuleID,
				event.EntryID,
				event.SensorType,
				value,
				event.TriggeredAt.UnixNano(),
				sqlitepool.NullableText(string(event.Priority)),
				sqlitepool.NullableText(event.Title),
				sqlitepool.NullableText(event.Message),
			},
		})
	if err != nil {
		return fmt.Errorf("alert history: record: %w", err)
	}
	return nil
}

// MemoryHistory is an in-process History. The zero value is ready to
// use.
type MemoryHistory struct {
	mu     sync.Mutex
	last   map[[2]int64]time.Time
	events []sensor.AlertEvent
}

func (h *MemoryHistory) LastTriggered(ruleID, entryID int64) (time.Time, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	last, ok := h.last[[2]int64{ruleID, entryID}]
	return last, ok, nil
}

func (h *MemoryHistory) Record(event sensor.AlertEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		h.last = make(map[[2]int64]time.Time)
	}
	key := [2]int64{event.RuleID, event.EntryID}
	if previous, ok := h.last[key]; !ok || event.TriggeredAt.After(previous) {
		h.last[key] = event.TriggeredAt
	}
	h.events = append(h.events, event)
	return nil
}

// Events returns a copy of every recorded event in recording order.
func (h *MemoryHistory) Events() []sensor.AlertEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sensor.AlertEvent(nil), h.events...)
}

// EventFilter narrows ListEvents. Zero fields match everything.
type EventFilter struct {
	EntryID int64
	RuleID  int64
	Since   time.Time
	// Limit defaults to 50.
	Limit int
}

// ListEvents returns recorded alert events, newest first.
func ListEvents(ctx context.Context, pool *sqlitepool.Pool, filter EventFilter) ([]sensor.AlertEvent, error) {
	var conditions []string
	var args []any
	if filter.EntryID != 0 {
		conditions = append(conditions, "entry_id = ?")
		args = append(args, filter.EntryID)
	}
	if filter.RuleID != 0 {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, filter.RuleID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "triggered_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	statement := "SELECT rule_id, entry_id, sensor_type, value, triggered_at, priority, title, message FROM alert_events"
	if len(conditions) > 0 {
		statement += " WHERE " + strings.Join(conditions, " AND ")
	}
	statement += " ORDER BY triggered_at DESC, id DESC LIMIT ?"

	var events []sensor.AlertEvent
	err := pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				event := sensor.AlertEvent{
					RuleID:      stmt.ColumnInt64(0),
					EntryID:     stmt.ColumnInt64(1),
					SensorType:  stmt.ColumnText(2),
					TriggeredAt: time.Unix(0, stmt.ColumnInt64(4)).UTC(),
					Priority:    sensor.Priority(sqlitepool.ColumnNullableText(stmt, 5)),
					Title:       sqlitepool.ColumnNullableText(stmt, 6),
					Message:     sqlitepool.ColumnNullableText(stmt, 7),
				}
				switch stmt.ColumnType(3) {
				case sqlite.TypeFloat, sqlite.TypeInteger:
					event.Value = sensor.Number(stmt.ColumnFloat(3))
				default:
					event.Value = sensor.Text(stmt.ColumnText(3))
				}
				events = append(events, event)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("alert history: list events: %w", err)
	}
	return events, nil
}
