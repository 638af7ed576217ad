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

	"github.com/bureau-foundation/sensorlink/lib/devicepath"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// DefaultPollingInterval applies to devices registered without one.
const DefaultPollingInterval = time.Minute

const deviceColumns = `device_id, name, network_address, endpoint, capabilities, polling_enabled,
	polling_interval, status, last_seen, last_poll_success, last_poll_error`

// UpsertDevice registers a device or updates its configuration. Poll
// state (status, last_seen, last_poll_*) is never taken from the
// argument: new devices start pending and existing devices keep their
// state.
func (c *Catalog) UpsertDevice(ctx context.Context, device sensor.Device) error {
	if err := validateDevice(&device); err != nil {
		return err
	}
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return upsertDevice(conn, device)
	})
}

func validateDevice(device *sensor.Device) error {
	device.ID = strings.TrimSpace(device.ID)
	if device.ID == "" {
		return fault.Validation("catalog: device_id is required")
	}
	device.Address = strings.TrimSpace(device.Address)
	if device.Address == "" {
		return fault.Validation("catalog: device %s: network_address is required", device.ID)
	}
	if device.PollingInterval < 0 {
		return fault.Validation("catalog: device %s: polling interval must not be negative", device.ID)
	}
	if device.PollingInterval == 0 {
		device.PollingInterval = DefaultPollingInterval
	}
	return nil
}

func upsertDevice(conn *sqlite.Conn, device sensor.Device) error {
	err := sqlitex.Execute(conn,
		`INSERT INTO devices (device_id, name, network_address, endpoint, capabilities,
			polling_enabled, polling_interval, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')
		 ON CONFLICT (device_id) DO UPDATE SET
			name = excluded.name,
			network_address = excluded.network_address,
			endpoint = excluded.endpoint,
			capabilities = excluded.capabilities,
			polling_enabled = excluded.polling_enabled,
			polling_interval = excluded.polling_interval`,
		&sqlitex.ExecOptions{Args: []any{
			device.ID,
			sqlitepool.NullableText(device.Name),
			device.Address,
			sqlitepool.NullableText(device.Endpoint),
			sqlitepool.NullableText(strings.Join(device.Capabilities, ",")),
			device.PollingEnabled,
			int64(device.PollingInterval),
		}})
	if err != nil {
		return fmt.Errorf("catalog: upsert device %s: %w", device.ID, err)
	}
	return nil
}

// Device returns one device, or a not_found error.
func (c *Catalog) Device(ctx context.Context, deviceID string) (sensor.Device, error) {
	devices, err := c.queryDevices(ctx, "SELECT "+deviceColumns+" FROM devices WHERE device_id = ?", deviceID)
	if err != nil {
		return sensor.Device{}, err
	}
	if len(devices) == 0 {
		return sensor.Device{}, fault.NotFound("catalog: device %s not found", deviceID)
	}
	return devices[0], nil
}

// ListDevices returns every registered device ordered by identifier.
func (c *Catalog) ListDevices(ctx context.Context) ([]sensor.Device, error) {
	return c.queryDevices(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY device_id")
}

func (c *Catalog) queryDevices(ctx context.Context, statement string, args ...any) ([]sensor.Device, error) {
	var devices []sensor.Device
	err := c.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				device := sensor.Device{
					ID:              stmt.ColumnText(0),
					Name:            sqlitepool.ColumnNullableText(stmt, 1),
					Address:         stmt.ColumnText(2),
					Endpoint:        sqlitepool.ColumnNullableText(stmt, 3),
					PollingEnabled:  stmt.ColumnBool(5),
					PollingInterval: time.Duration(stmt.ColumnInt64(6)),
					Status:          sensor.DeviceStatus(stmt.ColumnText(7)),
					LastSeen:        columnTime(stmt, 8),
					LastPollSuccess: columnTime(stmt, 9),
					LastPollError:   sqlitepool.ColumnNullableText(stmt, 10),
				}
				if capabilities := sqlitepool.ColumnNullableText(stmt, 4); capabilities != "" {
					device.Capabilities = strings.Split(capabilities, ",")
				}
				devices = append(devices, device)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: query devices: %w", err)
	}
	return devices, nil
}

func columnTime(stmt *sqlite.Stmt, column int) time.Time {
	if stmt.ColumnType(column) == sqlite.TypeNull {
		return time.Time{}
	}
	return time.Unix(0, stmt.ColumnInt64(column)).UTC()
}

// DeleteDevice deregisters a device together with its field
// mappings, entry associations, and stored payload.
func (c *Catalog) DeleteDevice(ctx context.Context, deviceID string) error {
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM devices WHERE device_id = ?",
			&sqlitex.ExecOptions{Args: []any{deviceID}}); err != nil {
			return fmt.Errorf("catalog: delete device %s: %w", deviceID, err)
		}
		if conn.Changes() == 0 {
			return fault.NotFound("catalog: device %s not found", deviceID)
		}
		for _, table := range []string{"field_mappings", "device_entries", "device_payloads"} {
			if err := sqlitex.Execute(conn, "DELETE FROM "+table+" WHERE device_id = ?",
				&sqlitex.ExecOptions{Args: []any{deviceID}}); err != nil {
				return fmt.Errorf("catalog: delete device %s from %s: %w", deviceID, table, err)
			}
		}
		c.logger.Info("device deleted", "device_id", deviceID)
		return nil
	})
}

// SetDeviceDisabled moves a device into the disabled state, or out of
// it. Re-enabling returns the device to pending; it does not resume
// its previous online or offline state.
func (c *Catalog) SetDeviceDisabled(ctx context.Context, deviceID string, disabled bool) error {
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		statement := "UPDATE devices SET status = 'disabled' WHERE device_id = ?"
		if !disabled {
			statement = "UPDATE devices SET status = 'pending' WHERE device_id = ? AND status = 'disabled'"
		}
		if err := sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{Args: []any{deviceID}}); err != nil {
			return fmt.Errorf("catalog: set device %s disabled=%v: %w", deviceID, disabled, err)
		}
		exists, err := sqlitepool.QueryInt64(conn, "SELECT COUNT(*) FROM devices WHERE device_id = ?", deviceID)
		if err != nil {
			return fmt.Errorf("catalog: set device %s disabled=%v: %w", deviceID, disabled, err)
		}
		if exists == 0 {
			return fault.NotFound("catalog: device %s not found", deviceID)
		}
		return nil
	})
}

// RecordPollSuccess marks a device online at the given time, clears
// its last error, and stores the raw payload. A device disabled while
// the poll was in flight stays disabled.
func (c *Catalog) RecordPollSuccess(ctx context.Context, deviceID string, at time.Time, payload []byte) error {
	compressed := compressPayload(payload)
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`UPDATE devices SET
				status = CASE status WHEN 'disabled' THEN 'disabled' ELSE 'online' END,
				last_seen = ?,
				last_poll_success = ?,
				last_poll_error = NULL
			 WHERE device_id = ?`,
			&sqlitex.ExecOptions{Args: []any{at.UnixNano(), at.UnixNano(), deviceID}})
		if err != nil {
			return fmt.Errorf("catalog: record poll success for %s: %w", deviceID, err)
		}
		if conn.Changes() == 0 {
			return fault.NotFound("catalog: device %s not found", deviceID)
		}
		if len(payload) == 0 {
			return nil
		}
		err = sqlitex.Execute(conn,
			`INSERT INTO device_payloads (device_id, fetched_at, size, payload) VALUES (?, ?, ?, ?)
			 ON CONFLICT (device_id) DO UPDATE SET
				fetched_at = excluded.fetched_at,
				size = excluded.size,
				payload = excluded.payload`,
			&sqlitex.ExecOptions{Args: []any{deviceID, at.UnixNano(), len(payload), compressed}})
		if err != nil {
			return fmt.Errorf("catalog: store payload for %s: %w", deviceID, err)
		}
		return nil
	})
}

// RecordPollFailure marks a device offline with message as its last
// poll error. last_seen and last_poll_success are left unchanged.
func (c *Catalog) RecordPollFailure(ctx context.Context, deviceID string, message string) error {
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`UPDATE devices SET
				status = CASE status WHEN 'disabled' THEN 'disabled' ELSE 'offline' END,
				last_poll_error = ?
			 WHERE device_id = ?`,
			&sqlitex.ExecOptions{Args: []any{message, deviceID}})
		if err != nil {
			return fmt.Errorf("catalog: record poll failure for %s: %w", deviceID, err)
		}
		if conn.Changes() == 0 {
			return fault.NotFound("catalog: device %s not found", deviceID)
		}
		return nil
	})
}

// PutFieldMapping adds or updates a mapping for a registered device.
// The source path must parse.
func (c *Catalog) PutFieldMapping(ctx context.Context, mapping sensor.FieldMapping) error {
	if err := validateMapping(&mapping); err != nil {
		return err
	}
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return putFieldMapping(conn, mapping)
	})
}

func validateMapping(mapping *sensor.FieldMapping) error {
	mapping.TargetSensorType = strings.TrimSpace(mapping.TargetSensorType)
	if mapping.TargetSensorType == "" {
		return fault.Validation("catalog: mapping for device %s: target_sensor_type is required", mapping.DeviceID)
	}
	if _, err := devicepath.Parse(mapping.SourcePath); err != nil {
		return fault.Validation("catalog: mapping for device %s: %v", mapping.DeviceID, err)
	}
	return nil
}

func putFieldMapping(conn *sqlite.Conn, mapping sensor.FieldMapping) error {
	exists, err := sqlitepool.QueryInt64(conn, "SELECT COUNT(*) FROM devices WHERE device_id = ?", mapping.DeviceID)
	if err != nil {
		return fmt.Errorf("catalog: put mapping: %w", err)
	}
	if exists == 0 {
		return fault.NotFound("catalog: device %s not found", mapping.DeviceID)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO field_mappings (device_id, source_path, target_sensor_type, unit, enabled)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (device_id, source_path, target_sensor_type) DO UPDATE SET
			unit = excluded.unit,
			enabled = excluded.enabled`,
		&sqlitex.ExecOptions{Args: []any{
			mapping.DeviceID,
			mapping.SourcePath,
			mapping.TargetSensorType,
			sqlitepool.NullableText(mapping.Unit),
			mapping.Enabled,
		}})
	if err != nil {
		return fmt.Errorf("catalog: put mapping for %s: %w", mapping.DeviceID, err)
	}
	return nil
}

// FieldMappings returns the device's enabled mappings in creation
// order.
func (c *Catalog) FieldMappings(ctx context.Context, deviceID string) ([]sensor.FieldMapping, error) {
	var mappings []sensor.FieldMapping
	err := c.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT device_id, source_path, target_sensor_type, unit, enabled
			 FROM field_mappings WHERE device_id = ? AND enabled = 1 ORDER BY id`,
			&sqlitex.ExecOptions{
				Args: []any{deviceID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					mappings = append(mappings, sensor.FieldMapping{
						DeviceID:         stmt.ColumnText(0),
						SourcePath:       stmt.ColumnText(1),
						TargetSensorType: stmt.ColumnText(2),
						Unit:             sqlitepool.ColumnNullableText(stmt, 3),
						Enabled:          stmt.ColumnBool(4),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: field mappings for %s: %w", deviceID, err)
	}
	return mappings, nil
}

// LinkEntry associates an entry with a device so that its polled
// readings are linked to the entry.
func (c *Catalog) LinkEntry(ctx context.Context, deviceID string, entryID int64) error {
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return linkEntry(conn, deviceID, entryID)
	})
}

func linkEntry(conn *sqlite.Conn, deviceID string, entryID int64) error {
	err := sqlitex.Execute(conn,
		"INSERT OR IGNORE INTO device_entries (device_id, entry_id) VALUES (?, ?)",
		&sqlitex.ExecOptions{Args: []any{deviceID, entryID}})
	if err != nil {
		return fmt.Errorf("catalog: link entry %d to %s: %w", entryID, deviceID, err)
	}
	return nil
}

// UnlinkEntry removes an entry association. Removing an association
// that does not exist is not an error.
func (c *Catalog) UnlinkEntry(ctx context.Context, deviceID string, entryID int64) error {
	return c.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"DELETE FROM device_entries WHERE device_id = ? AND entry_id = ?",
			&sqlitex.ExecOptions{Args: []any{deviceID, entryID}})
		if err != nil {
			return fmt.Errorf("catalog: unlink entry %d from %s: %w", entryID, deviceID, err)
		}
		return nil
	})
}

// LinkedEntries returns the identifiers of entries associated with
// the device, ascending.
func (c *Catalog) LinkedEntries(ctx context.Context, deviceID string) ([]int64, error) {
	var entryIDs []int64
	err := c.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT entry_id FROM device_entries WHERE device_id = ? ORDER BY entry_id",
			&sqlitex.ExecOptions{
				Args: []any{deviceID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entryIDs = append(entryIDs, stmt.ColumnInt64(0))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: linked entries for %s: %w", deviceID, err)
	}
	return entryIDs, nil
}
