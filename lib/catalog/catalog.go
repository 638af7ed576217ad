// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Schema creates the catalog tables. Foreign keys are off in the
// shared pool, so DeleteDevice removes dependent rows itself.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER PRIMARY KEY,
	type_id   INTEGER,
	lifecycle TEXT NOT NULL DEFAULT 'active',
	name      TEXT
);

CREATE TABLE IF NOT EXISTS alert_rules (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_type         TEXT NOT NULL,
	entry_id            INTEGER,
	entry_type_id       INTEGER,
	condition           TEXT NOT NULL,
	threshold           REAL NOT NULL,
	threshold_secondary REAL,
	cooldown            INTEGER NOT NULL DEFAULT 0,
	priority            TEXT NOT NULL DEFAULT 'medium',
	is_active           INTEGER NOT NULL DEFAULT 1,
	title               TEXT,
	message             TEXT
);

CREATE INDEX IF NOT EXISTS idx_alert_rules_sensor
	ON alert_rules (sensor_type);

CREATE TABLE IF NOT EXISTS devices (
	device_id         TEXT PRIMARY KEY,
	name              TEXT,
	network_address   TEXT NOT NULL,
	endpoint          TEXT,
	capabilities      TEXT,
	polling_enabled   INTEGER NOT NULL DEFAULT 1,
	polling_interval  INTEGER NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	last_seen         INTEGER,
	last_poll_success INTEGER,
	last_poll_error   TEXT
);

CREATE TABLE IF NOT EXISTS field_mappings (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id          TEXT NOT NULL,
	source_path        TEXT NOT NULL,
	target_sensor_type TEXT NOT NULL,
	unit               TEXT,
	enabled            INTEGER NOT NULL DEFAULT 1,
	UNIQUE (device_id, source_path, target_sensor_type)
);

CREATE TABLE IF NOT EXISTS device_entries (
	device_id TEXT NOT NULL,
	entry_id  INTEGER NOT NULL,
	PRIMARY KEY (device_id, entry_id)
);

CREATE TABLE IF NOT EXISTS device_payloads (
	device_id  TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	payload    BLOB NOT NULL
);
`

// Config holds the dependencies for New.
type Config struct {
	Pool   *sqlitepool.Pool
	Clock  clock.Clock
	Logger *slog.Logger
}

// Catalog reads and writes entries, rules, and devices.
type Catalog struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Catalog over a pool whose schema includes [Schema].
func New(cfg Config) (*Catalog, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("catalog: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("catalog: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("catalog: Logger is required")
	}
	return &Catalog{pool: cfg.Pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}
