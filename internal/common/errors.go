// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Store errors.
	ErrSheetNotFound = errors.New("sheet not found")
	ErrRowNotFound   = errors.New("row not found")

	// Source errors.
	ErrSourceUnavailable = errors.New("source folder unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// FormatError reports a source file whose name or content does not match
// the expected shape. It is fatal for that file only; the run continues
// with the remaining files.
type FormatError struct {
	Err  error
	File string
	Row  int // 1-based row within the file; 0 when the filename itself is bad
}

func (e *FormatError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s row %d: %v", e.File, e.Row, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError wraps an error as a file-level format failure.
func NewFormatError(file string, row int, err error) error {
	return &FormatError{File: file, Row: row, Err: err}
}

// IsFormatError reports whether err is a per-file format failure.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
