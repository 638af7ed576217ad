// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the sensorlink
// operator CLI.
//
// [Command] is a named node with optional [Command.Subcommands], a
// lazily built [pflag.FlagSet], and a Run function. [Command.Execute]
// parses flags, routes subcommands, prints help with examples, and
// suggests the closest command or flag (Levenshtein distance of at
// most 3) on a typo.
//
// [FlagsFromParams] binds a params struct by its flag/desc/default
// tags; embedding [JSONOutput] adds --json. [NewCommandLogger] picks a
// text or JSON slog handler depending on whether stderr is a terminal.
package cli
