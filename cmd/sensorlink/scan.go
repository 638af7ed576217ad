// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/config"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/poller"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

type scanParams struct {
	ConnectionParams
	cli.JSONOutput
	Register    bool          `flag:"register" desc:"register discovered devices (pending, polling disabled)"`
	Timeout     time.Duration `flag:"timeout" desc:"per-address probe timeout (default: discovery.probe_timeout)"`
	Concurrency int           `flag:"concurrency" desc:"probes in flight (default: discovery.concurrency)"`
}

func scanCommand() *cli.Command {
	var params scanParams

	return &cli.Command{
		Name:    "scan",
		Summary: "Scan an IPv4 range for compatible devices",
		Description: `Probe every host address of an IPv4 CIDR range with an HTTP GET of
the default telemetry endpoint. Addresses that answer with JSON whose
name or identifier matches a discovery pattern are reported.

With --register, discovered devices are added to the catalog with
polling disabled, so field mappings can be configured before the
daemon starts polling them.`,
		Usage: "sensorlink scan <cidr> [flags]",
		Examples: []cli.Example{
			{Description: "Scan the brewery VLAN", Command: "sensorlink scan 192.168.4.0/24"},
			{Description: "Scan and register what answers", Command: "sensorlink scan 192.168.4.0/26 --register"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("scan", &params) },
		Run: func(args []string) error {
			cidr, err := singleArgument(args, "CIDR range")
			if err != nil {
				return err
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			logger, err := params.logger()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			discovery, err := newDiscovery(cfg, params.Timeout, params.Concurrency, logger)
			if err != nil {
				return err
			}

			var registrar deviceRegistrar
			if params.Register {
				conn, err := params.open()
				if err != nil {
					return err
				}
				defer conn.Close()
				registrar = conn.db.Catalog
			}

			result, err := runScan(ctx, discovery, registrar, cidr)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			return writeScan(os.Stdout, result, params.Register)
		},
	}
}

func newDiscovery(cfg *config.Config, timeout time.Duration, concurrency int, logger *slog.Logger) (*poller.Discovery, error) {
	if timeout <= 0 {
		timeout = cfg.Discovery.ProbeTimeout.Std()
	}
	if concurrency <= 0 {
		concurrency = cfg.Discovery.Concurrency
	}
	prober := poller.NewHTTPFetcher(timeout).WithDefaultEndpoint(cfg.Poller.DefaultEndpoint)
	return poller.NewDiscovery(poller.DiscoveryConfig{
		Prober:       prober,
		NamePatterns: cfg.Discovery.NamePatterns,
		Concurrency:  concurrency,
		MaxAddresses: cfg.Discovery.MaxAddresses,
		Clock:        clock.Real(),
		Logger:       logger.With("component", "discovery"),
	})
}

type deviceRegistrar interface {
	Device(ctx context.Context, deviceID string) (sensor.Device, error)
	UpsertDevice(ctx context.Context, device sensor.Device) error
}

// scanReport is a scan result plus the devices it registered.
type scanReport struct {
	poller.ScanResult
	Registered []string `json:"registered,omitempty"`
}

// runScan scans cidr and, when registrar is non-nil, registers each
// discovered device not already known. Registration leaves polling
// off: a device with no field mappings would only be skipped by the
// scheduler. Known devices are left untouched.
func runScan(ctx context.Context, discovery *poller.Discovery, registrar deviceRegistrar, cidr string) (scanReport, error) {
	result, err := discovery.Scan(ctx, cidr)
	report := scanReport{ScanResult: result}
	if err != nil || registrar == nil {
		return report, err
	}
	for _, found := range result.Devices {
		_, err := registrar.Device(ctx, found.DeviceID)
		if err == nil {
			continue
		}
		if !fault.Is(err, fault.CategoryNotFound) {
			return report, err
		}
		err = registrar.UpsertDevice(ctx, sensor.Device{
			ID:           found.DeviceID,
			Name:         found.Name,
			Address:      found.Address,
			Capabilities: found.Capabilities,
		})
		if err != nil {
			return report, fmt.Errorf("registering %s: %w", found.DeviceID, err)
		}
		report.Registered = append(report.Registered, found.DeviceID)
	}
	return report, nil
}

func writeScan(w io.Writer, report scanReport, registering bool) error {
	result := report.ScanResult
	fmt.Fprintf(w, "Scanned %d addresses in %s in %s.\n",
		result.Probed, result.Range, result.Elapsed.Round(time.Millisecond))
	if len(result.Devices) == 0 {
		_, err := fmt.Fprintln(w, "No compatible devices found.")
		return err
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tDEVICE\tNAME\tKIND\tCAPABILITIES")
	for _, found := range result.Devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			found.Address, found.DeviceID, found.Name, found.Kind, strings.Join(found.Capabilities, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if registering {
		fmt.Fprintf(w, "\nRegistered %d new devices with polling disabled. Add field mappings, then enable polling.\n",
			len(report.Registered))
	}
	return nil
}
