// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/linkindex"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

type readingsParams struct {
	ConnectionParams
	cli.JSONOutput
	SensorType string `flag:"sensor-type,t" desc:"only readings of this sensor type"`
	Limit      int    `flag:"limit,n" desc:"maximum readings" default:"50"`
	Offset     int    `flag:"offset" desc:"readings to skip"`
}

func readingsCommand() *cli.Command {
	var params readingsParams

	return &cli.Command{
		Name:    "readings",
		Summary: "List the readings linked to an entry",
		Description: `List the readings covered by an entry's link ranges, newest first.
A reading shared by several overlapping ranges is listed once.`,
		Usage: "sensorlink readings <entry-id> [flags]",
		Examples: []cli.Example{
			{Description: "Last ten temperatures of entry 12", Command: "sensorlink readings 12 -t temperature -n 10"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("readings", &params) },
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

			readings, err := conn.db.Links.ReadingsForEntry(context.Background(), linkindex.ReadingsQuery{
				EntryID:    entryID,
				SensorType: params.SensorType,
				Limit:      params.Limit,
				Offset:     params.Offset,
			})
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(readings); done {
				return err
			}
			return writeReadings(os.Stdout, readings)
		},
	}
}

func writeReadings(w io.Writer, readings []sensor.Reading) error {
	if len(readings) == 0 {
		_, err := fmt.Fprintln(w, "no readings linked")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSENSOR\tVALUE\tRECORDED\tSOURCE")
	for _, reading := range readings {
		source := string(reading.SourceKind)
		if reading.SourceID != "" {
			source += ":" + reading.SourceID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			reading.ID, reading.SensorType, reading.Value,
			reading.RecordedAt.UTC().Format(time.RFC3339), source)
	}
	return tw.Flush()
}

type summaryParams struct {
	ConnectionParams
	cli.JSONOutput
}

func summaryCommand() *cli.Command {
	var params summaryParams

	return &cli.Command{
		Name:    "summary",
		Summary: "Summarize an entry's linked readings per sensor type",
		Usage:   "sensorlink summary <entry-id> [flags]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("summary", &params) },
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

			summary, err := conn.db.Links.Summary(context.Background(), entryID)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(summary); done {
				return err
			}
			return writeSummary(os.Stdout, summary)
		},
	}
}

func writeSummary(w io.Writer, summary linkindex.Summary) error {
	fmt.Fprintf(w, "Entry %d: %d readings in %d ranges\n", summary.EntryID, summary.Readings, summary.Ranges)
	if len(summary.SensorTypes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SENSOR\tREADINGS\tRANGES\tIDS\tEARLIEST\tLATEST")
	for _, sensorType := range summary.SensorTypes {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d-%d\t%s\t%s\n",
			sensorType.SensorType, sensorType.Readings, sensorType.Ranges,
			sensorType.FirstReadingID, sensorType.LastReadingID,
			formatTime(sensorType.Earliest), formatTime(sensorType.Latest))
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
