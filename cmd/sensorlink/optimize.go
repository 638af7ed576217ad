// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
)

type optimizeParams struct {
	ConnectionParams
	cli.JSONOutput
}

func optimizeCommand() *cli.Command {
	var params optimizeParams

	return &cli.Command{
		Name:    "optimize",
		Summary: "Merge an entry's adjacent and overlapping link ranges",
		Description: `Merge the link ranges of one entry that share a sensor type and link
kind and touch or overlap. The set of linked readings is unchanged;
only the number of ranges shrinks.`,
		Usage: "sensorlink optimize <entry-id> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("optimize", &params) },
		Run: func(args []string) error {
			entryID, err := entryIDArgument(args)
			if err != nil {
				return err
			}
			conn, err := params.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			result, err := conn.db.Links.Optimize(context.Background(), entryID)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			return writeOptimize(os.Stdout, result)
		},
	}
}

func writeOptimize(w io.Writer, result linkindex.OptimizeResult) error {
	if result.RangesBefore == result.RangesAfter {
		_, err := fmt.Fprintf(w, "Entry %d: %d ranges, nothing to merge.\n", result.EntryID, result.RangesBefore)
		return err
	}
	_, err := fmt.Fprintf(w, "Entry %d: merged %d ranges into %d.\n",
		result.EntryID, result.RangesBefore, result.RangesAfter)
	return err
}
