// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devicepath

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/bureau-foundation/sensorlink/lib/schema/sensor"
)

// Kind is the variant held by a Value.
type Kind int

const (
	Missing Kind = iota
	Object
	Array
	Scalar
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case Array:
		return "array"
	case Scalar:
		return "scalar"
	}
	return "missing"
}

// Value is a decoded JSON value. The zero Value is Missing.
type Value struct {
	kind   Kind
	object map[string]Value
	array  []Value
	// scalar is json.Number, string, bool, or nil (JSON null).
	scalar any
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// Found reports whether v is anything other than Missing.
func (v Value) Found() bool { return v.kind != Missing }

// Scalar returns the scalar payload: json.Number, string, bool, or nil.
func (v Value) Scalar() any { return v.scalar }

// Keys returns an object's keys in unspecified order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.object))
	for key := range v.object {
		keys = append(keys, key)
	}
	return keys
}

// Field returns the named member of an object, or Missing.
func (v Value) Field(key string) Value {
	if v.kind != Object {
		return Value{}
	}
	return v.object[key]
}

// Len returns the number of array items (zero for non-arrays).
func (v Value) Len() int { return len(v.array) }

// Item returns an array item, or Missing when out of range.
func (v Value) Item(index int) Value {
	if v.kind != Array || index < 0 || index >= len(v.array) {
		return Value{}
	}
	return v.array[index]
}

// String returns a scalar's text form. Numbers keep their JSON
// spelling. Non-scalars return "".
func (v Value) String() string {
	switch scalar := v.scalar.(type) {
	case json.Number:
		return scalar.String()
	case string:
		return scalar
	case bool:
		return strconv.FormatBool(scalar)
	}
	return ""
}

// Number returns a numeric scalar as float64.
func (v Value) Number() (float64, bool) {
	number, ok := v.scalar.(json.Number)
	if !ok {
		return 0, false
	}
	parsed, err := number.Float64()
	return parsed, err == nil
}

// ReadingValue converts a resolved value into a reading value. Numbers
// stay numeric; strings and booleans become text. Null, empty
// strings, objects, arrays, and Missing report false.
func (v Value) ReadingValue() (sensor.Value, bool) {
	if v.kind != Scalar {
		return sensor.Value{}, false
	}
	if number, ok := v.Number(); ok {
		return sensor.Number(number), true
	}
	text := v.String()
	if text == "" {
		return sensor.Value{}, false
	}
	return sensor.Text(text), true
}

// ParseJSON decodes a JSON document into a Value, keeping numbers exact.
func ParseJSON(data []byte) (Value, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("devicepath: decoding payload: %w", err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("devicepath: decoding payload: trailing data after JSON value")
	}
	return FromAny(raw), nil
}

// FromAny converts the output of encoding/json (map[string]any,
// []any, json.Number, float64, string, bool, nil) into a Value.
func FromAny(raw any) Value {
	switch typed := raw.(type) {
	case map[string]any:
		object := make(map[string]Value, len(typed))
		for key, member := range typed {
			object[key] = FromAny(member)
		}
		return Value{kind: Object, object: object}
	case []any:
		array := make([]Value, len(typed))
		for index, item := range typed {
			array[index] = FromAny(item)
		}
		return Value{kind: Array, array: array}
	case float64:
		return Value{kind: Scalar, scalar: json.Number(strconv.FormatFloat(typed, 'f', -1, 64))}
	case int:
		return Value{kind: Scalar, scalar: json.Number(strconv.Itoa(typed))}
	case json.Number, string, bool, nil:
		return Value{kind: Scalar, scalar: typed}
	}
	return Value{}
}

// Resolve walks path from root. It returns Missing at the first step
// that cannot be satisfied.
func Resolve(root Value, path Path) Value {
	current := root
	for _, step := range path {
		if step.IsIndex {
			current = current.Item(step.Index)
		} else {
			current = current.Field(step.Key)
		}
		if !current.Found() {
			return Value{}
		}
	}
	return current
}
