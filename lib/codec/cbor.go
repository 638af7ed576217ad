// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Metadata keys are always strings. Without this, maps decoded
		// into any become map[interface{}]interface{}, which
		// encoding/json refuses to marshal.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeMetadata encodes a metadata map for storage. Empty and nil
// maps encode to nil so the column stores NULL.
func EncodeMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := encMode.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("codec: encoding metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata decodes a stored metadata blob. A nil or empty blob
// decodes to a nil map.
func DecodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := decMode.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("codec: decoding metadata: %w", err)
	}
	return metadata, nil
}

// MergeMetadata returns a new map holding every key of base and
// overlay. On conflicts the overlay value wins. Neither input is
// modified. Returns nil when both inputs are empty.
func MergeMetadata(base, overlay map[string]any) map[string]any {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overlay {
		merged[key] = value
	}
	return merged
}
