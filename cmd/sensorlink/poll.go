// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/clock"
	"github.com/bureau-foundation/sensorlink/lib/poller"
)

type pollParams struct {
	ConnectionParams
	cli.JSONOutput
}

func pollCommand() *cli.Command {
	var params pollParams

	return &cli.Command{
		Name:    "poll",
		Summary: "Poll every due device once",
		Description: `Run a single poll cycle: fetch each due device, extract its mapped
fields, and ingest them for its linked entries. Alerts raised by
the ingested values are logged rather than delivered.`,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("poll", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			conn, err := params.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			scheduler, err := poller.NewScheduler(poller.Config{
				Registry: conn.db.Catalog,
				Ingester: conn.db.Pipeline,
				Fetcher: poller.NewHTTPFetcher(conn.config.Poller.FetchTimeout.Std()).
					WithDefaultEndpoint(conn.config.Poller.DefaultEndpoint),
				Clock:  clock.Real(),
				Logger: conn.logger.With("component", "poller"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			result := scheduler.RunOnce(ctx)
			if done, err := params.EmitJSON(result); done {
				return err
			}
			return writeCycle(os.Stdout, result)
		},
	}
}

func writeCycle(w io.Writer, result poller.CycleResult) error {
	if len(result.Devices) == 0 {
		_, err := fmt.Fprintln(w, "no devices due")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tOUTCOME\tREADINGS\tERROR")
	for _, device := range result.Devices {
		message := device.Error
		if message == "" {
			message = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", device.DeviceID, device.Outcome, device.Readings, message)
	}
	return tw.Flush()
}
