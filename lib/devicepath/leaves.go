// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devicepath

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxArrayItems bounds how many items of each array Leaves
// descends into.
const DefaultMaxArrayItems = 5

const maxSampleLength = 50

// Leaf describes one scalar leaf of a payload.
type Leaf struct {
	Path     string `json:"path"`
	Sample   string `json:"sample"`
	Numeric  bool   `json:"numeric"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category"`
}

// Leaves lists every scalar leaf reachable from root, sorted by path.
// Only the first maxArrayItems items of each array are visited; a
// non-positive value means DefaultMaxArrayItems.
func Leaves(root Value, maxArrayItems int) []Leaf {
	if maxArrayItems <= 0 {
		maxArrayItems = DefaultMaxArrayItems
	}
	var leaves []Leaf
	collectLeaves(root, "", "", maxArrayItems, &leaves)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Path < leaves[j].Path })
	return leaves
}

func collectLeaves(value Value, prefix, key string, maxArrayItems int, leaves *[]Leaf) {
	switch value.Kind() {
	case Object:
		for _, member := range value.Keys() {
			path := member
			if prefix != "" {
				path = prefix + "." + member
			}
			collectLeaves(value.Field(member), path, member, maxArrayItems, leaves)
		}
	case Array:
		for index := range min(value.Len(), maxArrayItems) {
			collectLeaves(value.Item(index), fmt.Sprintf("%s[%d]", prefix, index), key, maxArrayItems, leaves)
		}
	case Scalar:
		sample := value.String()
		if value.Scalar() == nil {
			sample = "null"
		}
		if len(sample) > maxSampleLength {
			sample = sample[:maxSampleLength] + "..."
		}
		_, numeric := value.Number()
		category := "root"
		if cut := strings.IndexAny(prefix, ".["); cut > 0 {
			category = prefix[:cut]
		}
		*leaves = append(*leaves, Leaf{
			Path:     prefix,
			Sample:   sample,
			Numeric:  numeric,
			Unit:     InferUnit(key),
			Category: category,
		})
	}
}

// InferUnit guesses a display unit from a payload key name.
func InferUnit(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "temp"):
		return "°C"
	case strings.Contains(lower, "rssi"):
		return "dBm"
	case strings.Contains(lower, "heap"):
		return "bytes"
	case lower == "uptime_ms":
		return "ms"
	case strings.Contains(lower, "sensor_interval") && strings.Contains(lower, "ms"):
		return "ms"
	case strings.Contains(lower, "sensor_interval") && strings.Contains(lower, "seconds"):
		return "s"
	case strings.Contains(lower, "percent") || strings.HasSuffix(lower, "%"):
		return "%"
	case strings.Contains(lower, "volt"):
		return "V"
	case strings.Contains(lower, "amp"):
		return "A"
	}
	return ""
}
