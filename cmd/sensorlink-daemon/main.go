// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Sensorlink-daemon is the long-running sensorlink process. It owns the
// SQLite database, polls registered devices, and serves the HTTP API.
//
// On startup:
//  1. Loads configuration from --config or SENSORLINK_CONFIG.
//  2. Opens the database and imports the device manifest, if any.
//  3. Starts the poller scheduler (unless poller.enabled is false).
//  4. Serves the HTTP API and /metrics until SIGINT or SIGTERM.
//
// Shutdown stops the scheduler between devices, then drains in-flight
// HTTP requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/catalog"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/config"
	"github.com/bureau-foundation/sensorlink/lib/ingest"
	"github.com/bureau-foundation/sensorlink/lib/metrics"
	"github.com/bureau-foundation/sensorlink/lib/mirror"
	"github.com/bureau-foundation/sensorlink/lib/notify"
	"github.com/bureau-foundation/sensorlink/lib/poller"
	"github.com/bureau-foundation/sensorlink/lib/process"
	"github.com/bureau-foundation/sensorlink/lib/sensordb"
	"github.com/bureau-foundation/sensorlink/lib/service"
	"github.com/bureau-foundation/sensorlink/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath   string
		manifestPath string
		showVersion  bool
	)

	flags := pflag.NewFlagSet("sensorlink-daemon", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to sensorlink.yaml (default: $SENSORLINK_CONFIG)")
	flags.StringVar(&manifestPath, "devices", "", "JSONC device manifest to import at startup (overrides the manifest config key)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("sensorlink-daemon %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if manifestPath != "" {
		cfg.Manifest = manifestPath
	}

	logger, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := newDaemon(cfg, clock.Real(), logger)
	if err != nil {
		return err
	}
	defer daemon.close()

	return daemon.serve(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemon holds everything run() builds, so tests can assemble the
// same graph against a temporary database.
type daemon struct {
	config    *config.Config
	db        *sensordb.DB
	mirror    *mirror.Mirror
	scheduler *poller.Scheduler
	discovery *poller.Discovery
	metrics   *metrics.Metrics
	clock     clock.Clock
	logger    *slog.Logger
}

func newDaemon(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		config:  cfg,
		metrics: metrics.New(),
		clock:   clk,
		logger:  logger,
	}

	sinks := notify.Fanout{notify.LogSink{Logger: logger.With("component", "alerts")}}
	if cfg.Ntfy.Enabled() {
		ntfy, err := notify.NewNtfy(notify.NtfyConfig{
			ServerURL:    cfg.Ntfy.ServerURL,
			Topic:        cfg.Ntfy.Topic,
			Token:        cfg.Ntfy.Token,
			ClickBaseURL: cfg.Ntfy.ClickBaseURL,
			Timeout:      cfg.Ntfy.Timeout.Std(),
			Logger:       logger.With("component", "ntfy"),
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ntfy)
	}

	var observers []ingest.Observer
	if cfg.Mirror.Enabled() {
		m, err := mirror.New(mirror.Config{
			URL:         cfg.Mirror.URL,
			Token:       cfg.Mirror.Token,
			Org:         cfg.Mirror.Org,
			Bucket:      cfg.Mirror.Bucket,
			Measurement: cfg.Mirror.Measurement,
			Timeout:     cfg.Mirror.Timeout.Std(),
			Logger:      logger.With("component", "mirror"),
		})
		if err != nil {
			return nil, err
		}
		d.mirror = m
		observers = append(observers, m)
	}

	db, err := sensordb.Open(sensordb.Config{
		Path:      cfg.Database.Path,
		PoolSize:  cfg.Database.PoolSize,
		Sink:      alerting.Sink(sinks),
		Observers: observers,
		Clock:     clk,
		Logger:    logger,
		Metrics:   d.metrics,
	})
	if err != nil {
		d.close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d.db = db

	fetcher := poller.NewHTTPFetcher(cfg.Poller.FetchTimeout.Std()).
		WithDefaultEndpoint(cfg.Poller.DefaultEndpoint)
	d.scheduler, err = poller.NewScheduler(poller.Config{
		Registry: db.Catalog,
		Ingester: db.Pipeline,
		Fetcher:  fetcher,
		Interval: cfg.Poller.Interval.Std(),
		Clock:    clk,
		Logger:   logger.With("component", "poller"),
		Metrics:  d.metrics,
	})
	if err != nil {
		d.close()
		return nil, err
	}

	prober := poller.NewHTTPFetcher(cfg.Discovery.ProbeTimeout.Std()).
		WithDefaultEndpoint(cfg.Poller.DefaultEndpoint)
	d.discovery, err = poller.NewDiscovery(poller.DiscoveryConfig{
		Prober:       prober,
		NamePatterns: cfg.Discovery.NamePatterns,
		Concurrency:  cfg.Discovery.Concurrency,
		MaxAddresses: cfg.Discovery.MaxAddresses,
		Clock:        clk,
		Logger:       logger.With("component", "discovery"),
		Metrics:      d.metrics,
	})
	if err != nil {
		d.close()
		return nil, err
	}

	return d, nil
}

// importManifest loads the configured device manifest. A broken
// manifest stops startup: running with a half-understood device list
// would poll the wrong things.
func (d *daemon) importManifest(ctx context.Context) error {
	if d.config.Manifest == "" {
		return nil
	}
	manifest, err := catalog.ReadManifest(d.config.Manifest)
	if err != nil {
		return fmt.Errorf("reading device manifest: %w", err)
	}
	result, err := d.db.Catalog.Import(ctx, manifest)
	if err != nil {
		return fmt.Errorf("importing device manifest %s: %w", d.config.Manifest, err)
	}
	d.logger.Info("device manifest imported",
		"path", d.config.Manifest,
		"entries", result.Entries,
		"devices", result.Devices,
		"mappings", result.Mappings,
		"links", result.Links,
		"rules", result.Rules,
	)
	return nil
}

func (d *daemon) serve(ctx context.Context) error {
	if err := d.importManifest(ctx); err != nil {
		return err
	}

	// Bind before polling starts so a taken port fails fast.
	server, err := service.NewServer(service.ServerConfig{
		Address: d.config.HTTP.Listen,
		Handler: newAPI(d).router(),
		Logger:  d.logger.With("component", "http"),
	})
	if err != nil {
		return err
	}

	if d.config.Poller.Enabled {
		if err := d.scheduler.Start(ctx); err != nil {
			server.Close()
			return err
		}
		defer d.scheduler.Stop()
	} else {
		d.logger.Info("poller disabled by configuration")
	}

	d.logger.Info("sensorlink daemon running",
		"version", version.Info(),
		"database", d.config.Database.Path,
		"listen", server.Addr().String(),
		"poller", d.config.Poller.Enabled,
		"ntfy", d.config.Ntfy.Enabled(),
		"mirror", d.config.Mirror.Enabled(),
	)

	err = server.Serve(ctx)
	d.logger.Info("shutting down")
	return err
}

func (d *daemon) close() {
	if d.mirror != nil {
		d.mirror.Close()
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Error("closing database", "error", err)
		}
	}
}
