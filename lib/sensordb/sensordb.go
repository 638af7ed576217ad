// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensordb

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/catalog"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/ingest"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
	"github.com/bureau-foundation/sensorlink/lib/metrics"
	"github.com/bureau-foundation/sensorlink/lib/notify"
	"github.com/bureau-foundation/sensorlink/lib/readingstore"
	"github.com/bureau-foundation/sensorlink/lib/sqlitepool"
)

// Schema returns the schema scripts of every store, in dependency
// order.
func Schema() []string {
	return []string{
		readingstore.Schema,
		linkindex.Schema,
		alerting.Schema,
		catalog.Schema,
	}
}

// Config holds the parameters for Open.
type Config struct {
	// Path is the database file. Its directory must exist.
	Path     string
	PoolSize int

	// Sink receives alert events. Nil means log them.
	Sink alerting.Sink

	// Observers are told about every committed ingest batch.
	Observers []ingest.Observer

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DB is the opened database with every store built over it.
type DB struct {
	Pool     *sqlitepool.Pool
	Readings *readingstore.Store
	Links    *linkindex.Index
	Catalog  *catalog.Catalog
	Alerts   *alerting.Engine
	Pipeline *ingest.Pipeline
}

// Open opens the database at cfg.Path, applies the schema, and builds
// the stores. The caller must Close the returned DB.
func Open(cfg Config) (*DB, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("sensordb: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("sensordb: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Schema:   Schema(),
		Logger:   cfg.Logger.With("component", "sqlitepool"),
	})
	if err != nil {
		return nil, err
	}

	db, err := build(pool, cfg)
	if err != nil {
		return nil, errors.Join(err, pool.Close())
	}
	return db, nil
}

func build(pool *sqlitepool.Pool, cfg Config) (*DB, error) {
	readings, err := readingstore.New(readingstore.Config{
		Pool:   pool,
		Clock:  cfg.Clock,
		Logger: cfg.Logger.With("component", "readingstore"),
	})
	if err != nil {
		return nil, err
	}
	links, err := linkindex.New(linkindex.Config{
		Pool:   pool,
		Clock:  cfg.Clock,
		Logger: cfg.Logger.With("component", "linkindex"),
	})
	if err != nil {
		return nil, err
	}
	entries, err := catalog.New(catalog.Config{
		Pool:   pool,
		Clock:  cfg.Clock,
		Logger: cfg.Logger.With("component", "catalog"),
	})
	if err != nil {
		return nil, err
	}

	sink := cfg.Sink
	if sink == nil {
		sink = notify.LogSink{Logger: cfg.Logger.With("component", "alerts")}
	}
	engine, err := alerting.New(alerting.Config{
		Entries: entries,
		Rules:   entries,
		Sink:    sink,
		Logger:  cfg.Logger.With("component", "alerting"),
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := ingest.New(ingest.Config{
		Pool:      pool,
		Readings:  readings,
		Links:     links,
		Alerts:    engine,
		Entries:   entries,
		Observers: cfg.Observers,
		Clock:     cfg.Clock,
		Logger:    cfg.Logger.With("component", "ingest"),
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &DB{
		Pool:     pool,
		Readings: readings,
		Links:    links,
		Catalog:  entries,
		Alerts:   engine,
		Pipeline: pipeline,
	}, nil
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.Pool.Close()
}
