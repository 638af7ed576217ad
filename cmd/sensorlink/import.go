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
	"github.com/bureau-foundation/sensorlink/lib/catalog"
)

type importParams struct {
	ConnectionParams
	cli.JSONOutput
	DryRun bool `flag:"dry-run" desc:"validate the manifest and report its contents without writing"`
}

func importCommand() *cli.Command {
	var params importParams

	return &cli.Command{
		Name:    "import",
		Summary: "Import a JSONC device manifest",
		Description: `Import entries, devices, field mappings, entry links, and alert rules
from a manifest. The file is JSON with comments and trailing commas
allowed. Existing records are updated; nothing is removed.

The whole manifest is validated before anything is written, and it
is written in one transaction.`,
		Usage: "sensorlink import <manifest> [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("import", &params) },
		Run: func(args []string) error {
			path, err := singleArgument(args, "manifest path")
			if err != nil {
				return err
			}
			manifest, err := catalog.ReadManifest(path)
			if err != nil {
				return err
			}

			var result catalog.ImportResult
			if params.DryRun {
				result, err = manifest.Check()
				if err != nil {
					return err
				}
			} else {
				conn, err := params.open()
				if err != nil {
					return err
				}
				defer conn.Close()
				result, err = conn.db.Catalog.Import(context.Background(), manifest)
				if err != nil {
					return err
				}
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			return writeImport(os.Stdout, result, params.DryRun)
		},
	}
}

func writeImport(w io.Writer, result catalog.ImportResult, dryRun bool) error {
	verb := "Imported"
	if dryRun {
		verb = "Manifest declares"
	}
	_, err := fmt.Fprintf(w, "%s %d entries, %d devices, %d field mappings, %d entry links, %d rules.\n",
		verb, result.Entries, result.Devices, result.Mappings, result.Links, result.Rules)
	return err
}
