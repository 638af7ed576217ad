// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for sensorlink
// binaries.
//
// Configuration is loaded from a single file named by either the
// SENSORLINK_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file search and no environment
// override of individual values.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. Production
// without a section logs at warn.
//
// ${HOME}, ${VAR} and ${VAR:-default} patterns are expanded in the
// database path, manifest path, and credential tokens after loading,
// so secrets can stay in the environment.
//
// Key exports:
//
//   - [Config] -- master struct with Database, Poller, Discovery, HTTP, Ntfy, Mirror
//   - [Duration] -- time.Duration that unmarshals from "30s"
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other sensorlink packages.
package config
