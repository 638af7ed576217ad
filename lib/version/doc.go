// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for sensorlink
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// Without ldflags the commit falls back to the VCS stamp the Go
// toolchain embeds, and stays "unknown" in test binaries. [Info] formats them
// for --version, [Full] adds the Go toolchain and platform, and
// [UserAgent] is sent by the device fetcher and the ntfy sink.
package version
