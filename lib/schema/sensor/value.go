// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a reading value: either free text (which may carry a unit
// suffix such as "21.4°C" or "232724 bytes") or a number. The zero
// Value is empty text and is rejected by the reading store.
type Value struct {
	text    string
	number  float64
	numeric bool
}

// Text returns a text Value.
func Text(s string) Value { return Value{text: s} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{number: f, numeric: true} }

// IsEmpty reports whether the value is empty text.
func (v Value) IsEmpty() bool { return !v.numeric && v.text == "" }

// IsNumeric reports whether the value was recorded as a number.
func (v Value) IsNumeric() bool { return v.numeric }

// Float returns the numeric value. The second result is false for
// text values, including text that happens to look numeric.
func (v Value) Float() (float64, bool) { return v.number, v.numeric }

// String returns the text form. Numbers use the shortest decimal
// representation that round-trips.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	}
	return v.text
}

// MarshalJSON encodes numeric values as JSON numbers and text values
// as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.number)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON number or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("sensor value: empty input")
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("sensor value: %w", err)
		}
		*v = Text(text)
		return nil
	case 'n':
		return fmt.Errorf("sensor value: null is not a reading value")
	case '{', '[', 't', 'f':
		return fmt.Errorf("sensor value: expected number or string, got %s", data)
	}
	var number float64
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("sensor value: %w", err)
	}
	*v = Number(number)
	return nil
}
