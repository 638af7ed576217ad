// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/catalog"
	"github.com/bureau-foundation/sensorlink/lib/devicepath"
	"github.com/bureau-foundation/sensorlink/lib/poller"
)

type pathsParams struct {
	ConnectionParams
	cli.JSONOutput
	Live          bool `flag:"live" desc:"fetch the device now instead of using its last stored payload"`
	MaxArrayItems int  `flag:"max-array-items" desc:"array items visited per array" default:"5"`
}

func pathsCommand() *cli.Command {
	var params pathsParams

	return &cli.Command{
		Name:    "paths",
		Summary: "List the value paths in a device's payload",
		Description: `List every scalar leaf of a device's telemetry payload with a sample
value, an inferred unit, and a category. The listed paths are what
field mappings take as source_path.

By default the payload stored by the last successful poll is used;
--live fetches the device instead.`,
		Usage: "sensorlink paths <device-id> [flags]",
		Examples: []cli.Example{
			{Description: "Inspect a fermenter controller", Command: "sensorlink paths esp32-fermenter-01"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("paths", &params) },
		Run: func(args []string) error {
			deviceID, err := singleArgument(args, "device ID")
			if err != nil {
				return err
			}
			conn, err := params.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := context.Background()
			var payload []byte
			if params.Live {
				fetcher := poller.NewHTTPFetcher(conn.config.Poller.FetchTimeout.Std()).
					WithDefaultEndpoint(conn.config.Poller.DefaultEndpoint)
				payload, err = fetchLive(ctx, conn.db.Catalog, fetcher, deviceID)
			} else {
				payload, err = storedPayload(ctx, conn.db.Catalog, deviceID)
			}
			if err != nil {
				return err
			}

			leaves, err := payloadLeaves(payload, params.MaxArrayItems)
			if err != nil {
				return fmt.Errorf("device %s: %w", deviceID, err)
			}
			if done, err := params.EmitJSON(leaves); done {
				return err
			}
			return writeLeaves(os.Stdout, leaves)
		},
	}
}

func storedPayload(ctx context.Context, devices *catalog.Catalog, deviceID string) ([]byte, error) {
	payload, err := devices.LastPayload(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func fetchLive(ctx context.Context, devices *catalog.Catalog, fetcher poller.Fetcher, deviceID string) ([]byte, error) {
	device, err := devices.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return fetcher.Fetch(ctx, device)
}

func payloadLeaves(payload []byte, maxArrayItems int) ([]devicepath.Leaf, error) {
	document, err := devicepath.ParseJSON(payload)
	if err != nil {
		return nil, err
	}
	return devicepath.Leaves(document, maxArrayItems), nil
}

func writeLeaves(w io.Writer, leaves []devicepath.Leaf) error {
	if len(leaves) == 0 {
		_, err := fmt.Fprintln(w, "payload has no scalar values")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSAMPLE\tUNIT\tCATEGORY")
	for _, leaf := range leaves {
		unit := leaf.Unit
		if unit == "" {
			unit = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", leaf.Path, leaf.Sample, unit, leaf.Category)
	}
	return tw.Flush()
}
