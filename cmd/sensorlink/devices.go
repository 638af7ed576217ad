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

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensorlink/cmd/sensorlink/cli"
	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

type devicesParams struct {
	ConnectionParams
	cli.JSONOutput
}

func devicesCommand() *cli.Command {
	var params devicesParams

	return &cli.Command{
		Name:    "devices",
		Summary: "List registered devices and their poll state",
		Description: `List every registered device with its address, polling interval,
last successful poll, and status (pending, online, offline, disabled).`,
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("devices", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			conn, err := params.open()
			if err != nil {
				return err
			}
			defer conn.Close()

			devices, err := conn.db.Catalog.ListDevices(context.Background())
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(devices); done {
				return err
			}
			return writeDevices(os.Stdout, devices, time.Now())
		},
	}
}

var statusColors = map[sensor.DeviceStatus]lipgloss.Color{
	sensor.DeviceOnline:   lipgloss.Color("2"),
	sensor.DeviceOffline:  lipgloss.Color("1"),
	sensor.DevicePending:  lipgloss.Color("3"),
	sensor.DeviceDisabled: lipgloss.Color("8"),
}

// writeDevices prints a device table. Status is the last column so
// its color codes do not disturb the tab alignment; colors are
// dropped when w is not a terminal.
func writeDevices(w io.Writer, devices []sensor.Device, now time.Time) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no devices registered")
		return err
	}

	renderer := lipgloss.NewRenderer(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tADDRESS\tINTERVAL\tLAST POLL\tSTATUS")
	for _, device := range devices {
		status := renderer.NewStyle().
			Foreground(statusColors[device.Status]).
			Render(string(device.Status))
		if device.LastPollError != "" && device.Status == sensor.DeviceOffline {
			status += " (" + device.LastPollError + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			device.ID, device.Address, device.PollingInterval, relativeAge(now, device.LastPollSuccess), status)
	}
	return tw.Flush()
}

// relativeAge renders how long ago t was for table output.
func relativeAge(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
