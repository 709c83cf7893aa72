package ase

import "fmt"

// FormatError reports input that is not a sprite file this package can
// decode: bad magic, truncated data, or an unsupported color mode.
type FormatError struct {
	// Offset is the position in the input at which the problem was found.
	Offset int64
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ase: %s (offset %d): %v", e.Reason, e.Offset, e.Err)
	}
	return fmt.Sprintf("ase: %s (offset %d)", e.Reason, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(off int64, err error, format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: off, Reason: fmt.Sprintf(format, args...), Err: err}
}
