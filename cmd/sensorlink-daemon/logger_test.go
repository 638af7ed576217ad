// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerWritesJSONWhenNotATerminal(t *testing.T) {
	var output bytes.Buffer
	logger, err := newLogger("warn", &output)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}

	logger.Info("filtered")
	logger.Warn("device offline", "device_id", "esp32-a")

	var record map[string]any
	if err := json.Unmarshal(output.Bytes(), &record); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", output.String(), err)
	}
	if record["msg"] != "device offline" || record["device_id"] != "esp32-a" {
		t.Errorf("record = %v", record)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger("chatty", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}
