// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrPackaging is the sentinel error wrapped by PackagingError.
	ErrPackaging = errors.New("packaging failed")
	// ErrClosed is returned when an archive session is used after Close.
	ErrClosed = errors.New("archive session already closed")
	// ErrUnsupportedFormat is returned by CreateTree for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)

// PackagingError reports an entry that makes the archive invalid or ambiguous.
type PackagingError struct {
	// Entry is the archive entry name involved.
	Entry string
	// Reason explains the failure.
	Reason string
	// Cause is an optional underlying error.
	Cause error
}

// Error implements the error interface.
func (e *PackagingError) Error() string {
	msg := fmt.Sprintf("packaging %s: %s", e.Entry, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns ErrPackaging so callers can use errors.Is for programmatic detection.
func (e *PackagingError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrPackaging, e.Cause}
	}
	return []error{ErrPackaging}
}
