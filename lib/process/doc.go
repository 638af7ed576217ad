// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for sensorlink binaries.
//
// [Fatal] reports an error from run() to stderr before exiting, for
// the window where the structured logger may not exist yet. Everything
// after logger construction reports through slog instead.
package process
