// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package devicepath

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one path step: an object key or, when IsIndex is set, an
// array index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a parsed path expression.
type Path []Step

// String renders the path in expression syntax.
func (p Path) String() string {
	var builder strings.Builder
	for index, step := range p {
		if step.IsIndex {
			fmt.Fprintf(&builder, "[%d]", step.Index)
			continue
		}
		if index > 0 {
			builder.WriteByte('.')
		}
		builder.WriteString(step.Key)
	}
	return builder.String()
}

// Parse parses a path expression. The first segment may be a bare
// index ("[0].value") for payloads whose root is an array.
func Parse(expression string) (Path, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("devicepath: empty expression")
	}

	var path Path
	for segmentIndex, segment := range strings.Split(expression, ".") {
		key, rest, _ := strings.Cut(segment, "[")
		if key == "" && (segmentIndex > 0 || !strings.HasPrefix(segment, "[")) {
			return nil, fmt.Errorf("devicepath: %q: empty key in segment %d", expression, segmentIndex+1)
		}
		if strings.ContainsAny(key, "] \t") {
			return nil, fmt.Errorf("devicepath: %q: invalid key %q", expression, key)
		}
		if key != "" {
			path = append(path, Step{Key: key})
		}
		if len(segment) == len(key) {
			continue
		}

		// rest holds everything after the first '[': "0]" or "0][1]".
		indexes := "[" + rest
		for indexes != "" {
			if indexes[0] != '[' {
				return nil, fmt.Errorf("devicepath: %q: unexpected %q after index", expression, indexes)
			}
			closing := strings.IndexByte(indexes, ']')
			if closing < 0 {
				return nil, fmt.Errorf("devicepath: %q: unclosed '['", expression)
			}
			digits := indexes[1:closing]
			index, err := strconv.Atoi(digits)
			if err != nil || index < 0 || strings.HasPrefix(digits, "+") {
				return nil, fmt.Errorf("devicepath: %q: index %q is not a non-negative integer", expression, digits)
			}
			path = append(path, Step{Index: index, IsIndex: true})
			indexes = indexes[closing+1:]
		}
	}
	return path, nil
}

// MustParse is Parse for constant expressions; it panics on error.
func MustParse(expression string) Path {
	path, err := Parse(expression)
	if err != nil {
		panic(err)
	}
	return path
}
