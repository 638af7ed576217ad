// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

// Category classifies an error.
type Category string

const (
	// CategoryValidation: empty or malformed input to append, link,
	// ingest, or a configuration operation. Fix the input and retry.
	CategoryValidation Category = "validation"

	// CategoryNotFound: an unknown device, entry, rule, or reading
	// was referenced.
	CategoryNotFound Category = "not_found"

	// CategoryTransientNetwork: a device was unreachable or timed
	// out. Not fatal; the next due cycle retries.
	CategoryTransientNetwork Category = "transient_network"

	// CategoryDataIntegrity: stored state is inconsistent, such as a
	// link range with end < start or a range naming readings that do
	// not exist.
	CategoryDataIntegrity Category = "data_integrity"

	// CategoryInternal: anything else (I/O, SQLite, bugs).
	CategoryInternal Category = "internal"
)

// Error is a categorized error. Error() returns the wrapped message
// unchanged; the category travels alongside it.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string { return e.Err.Error() }

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// TransientNetwork creates a transient network error.
func TransientNetwork(format string, args ...any) *Error {
	return &Error{Category: CategoryTransientNetwork, Err: fmt.Errorf(format, args...)}
}

// DataIntegrity creates a data integrity error.
func DataIntegrity(format string, args ...any) *Error {
	return &Error{Category: CategoryDataIntegrity, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *Error {
	return &Error{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of the outermost *Error in err's
// chain, or CategoryInternal when err is non-nil and uncategorized.
// Returns the empty category for a nil error.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	return CategoryInternal
}

// Is reports whether err carries the given category.
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}
