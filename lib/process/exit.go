// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific process exit code. run() functions
// return it when the exit status itself is the result, for example a
// CLI check that found problems.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// Fatal writes "error: err" to stderr and exits with code 1, or with
// the code of an [ExitError] in the chain (without printing).
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

func report(stderr io.Writer, err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
