// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/fault"
	"github.com/bureau-foundation/sensorlink/lib/version"
)

func root() *cli.Command {
	return &cli.Command{
		Name:    "sensorlink",
		Summary: "Operate a sensorlink database",
		Description: `Sensorlink links sensor readings to the entries they describe and
polls network devices for telemetry. These commands operate on the
database configured in sensorlink.yaml.`,
		Subcommands: []*cli.Command{
			devicesCommand(),
			scanCommand(),
			pathsCommand(),
			pollCommand(),
			readingsCommand(),
			summaryCommand(),
			optimizeCommand(),
			alertsCommand(),
			importCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintf(os.Stdout, "sensorlink %s\n", version.Full())
			return nil
		},
	}
}

// entryIDArgument parses the single positional entry ID taken by the
// entry commands.
func entryIDArgument(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("entry ID required")
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("unexpected argument: %s", args[1])
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fault.Validation("invalid entry ID %q", args[0])
	}
	return id, nil
}

func singleArgument(args []string, what string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s required", what)
	}
	if len(args) > 1 {
		return "", fmt.Errorf("unexpected argument: %s", args[1])
	}
	return args[0], nil
}
