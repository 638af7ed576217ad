// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Injected with -ldflags -X, e.g.
//
//	go build -ldflags "-X github.com/bureau-foundation/sensorlink/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// shortCommit is the length GitCommit is cut to when it comes from
// the Go toolchain's VCS stamp instead of ldflags.
const shortCommit = 12

// commit returns the build's revision and dirty flag. ldflags values
// win; otherwise the VCS stamp `go build` embeds is used.
func commit() (revision string, dirty bool) {
	revision, dirty = GitCommit, GitDirty == "true"
	if revision != "unknown" {
		return revision, dirty
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return revision, dirty
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > shortCommit {
				revision = revision[:shortCommit]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return revision, dirty
}

// Info formats the version for --version output:
// "0.1.0-dev (abc1234, 2026-03-01T10:00:00Z)".
func Info() string {
	revision, dirty := commit()
	if dirty {
		revision += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, revision, BuildTime)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP requests to devices and ntfy.
func UserAgent() string {
	return "sensorlink/" + Version
}
