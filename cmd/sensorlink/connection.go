// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/config"
	"github.com/bureau-foundation/sensorlink/lib/sensordb"
)

// ConnectionParams selects the configuration every database command
// works against. Embedded in a params struct it contributes --config
// and --log-level.
type ConnectionParams struct {
	ConfigPath string
	LogLevel   string
}

func (p *ConnectionParams) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.ConfigPath, "config", "", "path to sensorlink.yaml (default: $SENSORLINK_CONFIG)")
	flagSet.StringVar(&p.LogLevel, "log-level", "warn", "log level for command diagnostics")
}

func (p *ConnectionParams) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p.ConfigPath != "" {
		cfg, err = config.LoadFile(p.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (p *ConnectionParams) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(p.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", p.LogLevel)
	}
	return cli.NewCommandLogger(level), nil
}

// connection is an open database plus the configuration it came
// from.
type connection struct {
	config *config.Config
	db     *sensordb.DB
	logger *slog.Logger
}

// open loads the configuration and opens its database. Alerts raised
// by commands that ingest go to the log; ntfy delivery is the
// daemon's job.
func (p *ConnectionParams) open() (*connection, error) {
	cfg, err := p.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := p.logger()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	db, err := sensordb.Open(sensordb.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Clock:    clock.Real(),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return &connection{config: cfg, db: db, logger: logger}, nil
}

func (c *connection) Close() {
	if err := c.db.Close(); err != nil {
		c.logger.Error("closing database", "error", err)
	}
}
