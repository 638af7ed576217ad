// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Entry is a catalog entry record.
type Entry struct {
	sensor.EntryInfo
	Name string `json:"name,omitempty"`
}

// PutEntry inserts or replaces an entry. An empty lifecycle means
// active.
func (c *Catalog) PutEntry(ctx context.Context, entry Entry) error {
	if entry.ID <= 0 {
		return fault.Validation("catalog: entry id must be positive")
	}
	if entry.Lifecycle == "" {
		entry.Lifecycle = sensor.LifecycleActive
	}
	if entry.Lifecycle != sensor.LifecycleActive && entry.Lifecycle != sensor.LifecycleInactive {
		return fault.Validation("catalog: entry %d: unknown lifecycle %q", entry.ID, entry.Lifecycle)
	}
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return putEntry(conn, entry)
	})
}

func putEntry(conn *sqlite.Conn, entry Entry) error {
	var typeID any
	if entry.TypeID != 0 {
		typeID = entry.TypeID
	}
	err := sqlitex.Execute(conn,
		`INSERT INTO entries (id, type_id, lifecycle, name) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			type_id = excluded.type_id,
			lifecycle = excluded.lifecycle,
			name = excluded.name`,
		&sqlitex.ExecOptions{Args: []any{entry.ID, typeID, string(entry.Lifecycle), sqlitepool.NullableText(entry.Name)}})
	if err != nil {
		return fmt.Errorf("catalog: put entry %d: %w", entry.ID, err)
	}
	return nil
}

// LookupEntry returns the entry's type and lifecycle, or a not_found
// error.
func (c *Catalog) LookupEntry(ctx context.Context, entryID int64) (sensor.EntryInfo, error) {
	var info sensor.EntryInfo
	var found bool
	err := c.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT id, type_id, lifecycle FROM entries WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{entryID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					info = sensor.EntryInfo{
						ID:        stmt.ColumnInt64(0),
						TypeID:    stmt.ColumnInt64(1),
						Lifecycle: sensor.Lifecycle(stmt.ColumnText(2)),
					}
					found = true
					return nil
				},
			})
	})
	if err != nil {
		return sensor.EntryInfo{}, fmt.Errorf("catalog: lookup entry %d: %w", entryID, err)
	}
	if !found {
		return sensor.EntryInfo{}, fault.NotFound("catalog: entry %d not found", entryID)
	}
	return info, nil
}

const ruleColumns = `id, sensor_type, entry_id, entry_type_id, condition, threshold,
	threshold_secondary, cooldown, priority, is_active, title, message`

// PutRule inserts a rule (ID zero) or replaces an existing one, and
// returns its identifier.
func (c *Catalog) PutRule(ctx context.Context, rule sensor.AlertRule) (int64, error) {
	if err := validateRule(&rule); err != nil {
		return 0, err
	}
	var id int64
	err := c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		var err error
		id, err = putRule(conn, rule)
		return err
	})
	return id, err
}

func validateRule(rule *sensor.AlertRule) error {
	rule.SensorType = strings.TrimSpace(rule.SensorType)
	if rule.SensorType == "" {
		return fault.Validation("catalog: rule sensor_type is required")
	}
	condition, err := sensor.ParseCondition(string(rule.Condition))
	if err != nil {
		return fault.Validation("catalog: rule: %v", err)
	}
	rule.Condition = condition
	if condition == sensor.ConditionBetween && rule.ThresholdSecondary == nil {
		return fault.Validation("catalog: between rule needs threshold_secondary")
	}
	if rule.Cooldown < 0 {
		return fault.Validation("catalog: rule cooldown must not be negative")
	}
	if rule.Priority == "" {
		rule.Priority = sensor.PriorityMedium
	}
	return nil
}

func putRule(conn *sqlite.Conn, rule sensor.AlertRule) (int64, error) {
	var secondary any
	if rule.ThresholdSecondary != nil {
		secondary = *rule.ThresholdSecondary
	}
	var id any
	if rule.ID != 0 {
		id = rule.ID
	}
	err := sqlitex.Execute(conn,
		`INSERT OR REPLACE INTO alert_rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			id,
			rule.SensorType,
			nullableID(rule.Scope.EntryID),
			nullableID(rule.Scope.EntryTypeID),
			string(rule.Condition),
			rule.Threshold,
			secondary,
			int64(rule.Cooldown),
			string(rule.Priority),
			rule.Active,
			sqlitepool.NullableText(rule.Title),
			sqlitepool.NullableText(rule.Message),
		}})
	if err != nil {
		return 0, fmt.Errorf("catalog: put rule: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// RulesForSensor returns every rule for sensorType, active or not, in
// identifier order. The alert engine applies scope and activity.
func (c *Catalog) RulesForSensor(ctx context.Context, sensorType string) ([]sensor.AlertRule, error) {
	return c.queryRules(ctx, "SELECT "+ruleColumns+" FROM alert_rules WHERE sensor_type = ? ORDER BY id", sensorType)
}

// Rules returns every rule in identifier order.
func (c *Catalog) Rules(ctx context.Context) ([]sensor.AlertRule, error) {
	return c.queryRules(ctx, "SELECT "+ruleColumns+" FROM alert_rules ORDER BY id")
}

func (c *Catalog) queryRules(ctx context.Context, statement string, args ...any) ([]sensor.AlertRule, error) {
	var rules []sensor.AlertRule
	err := c.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rule := sensor.AlertRule{
					ID:         stmt.ColumnInt64(0),
					SensorType: stmt.ColumnText(1),
					Scope: sensor.RuleScope{
						EntryID:     stmt.ColumnInt64(2),
						EntryTypeID: stmt.ColumnInt64(3),
					},
					Condition: sensor.Condition(stmt.ColumnText(4)),
					Threshold: stmt.ColumnFloat(5),
					Cooldown:  time.Duration(stmt.ColumnInt64(7)),
					Priority:  sensor.Priority(stmt.ColumnText(8)),
					Active:    stmt.ColumnBool(9),
					Title:     sqlitepool.ColumnNullableText(stmt, 10),
					Message:   sqlitepool.ColumnNullableText(stmt, 11),
				}
				if stmt.ColumnType(6) != sqlite.TypeNull {
					secondary := stmt.ColumnFloat(6)
					rule.ThresholdSecondary = &secondary
				}
				rules = append(rules, rule)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: query rules: %w", err)
	}
	return rules, nil
}
