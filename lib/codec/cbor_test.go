// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestMetadataRoundtrip(t *testing.T) {
	original := map[string]any{
		"unit":   "°C",
		"probe":  "ds18b20",
		"nested": map[string]any{"channel": "a"},
	}

	data, err := EncodeMetadata(original)
	if err != nil {
		t.Fatalf("EncodeMetadata: %v", err)
	}
	decoded, err := DecodeMetadata(data)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}

	if decoded["unit"] != "°C" || decoded["probe"] != "ds18b20" {
		t.Errorf("decoded = %v", decoded)
	}
	nested, ok := decoded["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested type = %T, want map[string]any", decoded["nested"])
	}
	if nested["channel"] != "a" {
		t.Errorf("nested = %v", nested)
	}

	// Decoded metadata must be directly JSON-encodable.
	if _, err := json.Marshal(decoded); err != nil {
		t.Errorf("json.Marshal(decoded): %v", err)
	}
}

func TestEncodeMetadataEmptyIsNil(t *testing.T) {
	for _, metadata := range []map[string]any{nil, {}} {
		data, err := EncodeMetadata(metadata)
		if err != nil {
			t.Fatalf("EncodeMetadata: %v", err)
		}
		if data != nil {
			t.Errorf("EncodeMetadata(%v) = %x, want nil", metadata, data)
		}
	}

	decoded, err := DecodeMetadata(nil)
	if err != nil || decoded != nil {
		t.Errorf("DecodeMetadata(nil) = %v, %v", decoded, err)
	}
}

func TestEncodeMetadataDeterministic(t *testing.T) {
	metadata := map[string]any{"b": 2, "a": 1, "c": "three"}
	first, err := EncodeMetadata(metadata)
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		again, err := EncodeMetadata(metadata)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs: %x vs %x", first, again)
		}
	}
}

func TestMergeMetadata(t *testing.T) {
	base := map[string]any{"source": "probe-1", "unit": "°C"}
	overlay := map[string]any{"unit": "°F", "batch": "b7"}

	merged := MergeMetadata(base, overlay)

	want := map[string]any{"source": "probe-1", "unit": "°F", "batch": "b7"}
	if len(merged) != len(want) {
		t.Fatalf("merged = %v, want %v", merged, want)
	}
	for key, value := range want {
		if merged[key] != value {
			t.Errorf("merged[%q] = %v, want %v", key, merged[key], value)
		}
	}
	if base["unit"] != "°C" {
		t.Error("MergeMetadata modified base")
	}
	if MergeMetadata(nil, nil) != nil {
		t.Error("MergeMetadata(nil, nil) should be nil")
	}
}
