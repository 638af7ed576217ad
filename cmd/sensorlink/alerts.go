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
	"github.com/bureau-foundation/sensorlink/lib/alerting"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

type alertsParams struct {
	ConnectionParams
	cli.JSONOutput
	EntryID int64         `flag:"entry" desc:"only alerts for this entry"`
	RuleID  int64         `flag:"rule" desc:"only alerts raised by this rule"`
	Since   time.Duration `flag:"since" desc:"only alerts triggered within this long (e.g. 24h)"`
	Limit   int           `flag:"limit,n" desc:"maximum alerts" default:"50"`
}

func alertsCommand() *cli.Command {
	var params alertsParams

	return &cli.Command{
		Name:    "alerts",
		Summary: "List recorded alert events",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("alerts", &params) },
		Examples: []cli.Example{
			{Description: "Alerts for entry 12 in the last day", Command: "sensorlink alerts --entry 12 --since 24h"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			conn, err := params.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			filter := alerting.EventFilter{
				EntryID: params.EntryID,
				RuleID:  params.RuleID,
				Limit:   params.Limit,
			}
			if params.Since > 0 {
				filter.Since = time.Now().Add(-params.Since)
			}
			events, err := alerting.ListEvents(context.Background(), conn.db.Pool, filter)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(events); done {
				return err
			}
			return writeAlerts(os.Stdout, events)
		},
	}
}

func writeAlerts(w io.Writer, events []sensor.AlertEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "no alerts")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIGGERED\tRULE\tENTRY\tSENSOR\tVALUE\tPRIORITY\tTITLE")
	for _, event := range events {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			event.TriggeredAt.UTC().Format(time.RFC3339), event.RuleID, event.EntryID,
			event.SensorType, event.Value, event.Priority, event.Title)
	}
	return tw.Flush()
}
