package weights

import (
	"errors"
	"fmt"
	"io"
)

// Common errors.
var (
	ErrTruncated     = fmt.Errorf("weight stream ended before the schedule was filled: %w", io.ErrUnexpectedEOF)
	ErrTrailingData  = errors.New("weight stream has data past the last scheduled parameter")
	ErrDuplicateName = errors.New("duplicate parameter name in schedule")
	ErrInvalidShape  = errors.New("invalid parameter shape in schedule")

	ErrChecksumMismatch = errors.New("weight file checksum mismatch")
)

// EntryError attaches the offending schedule entry to a load failure.
type EntryError struct {
	Index int    // Position in the schedule.
	Name  string // Parameter name.
	Err   error  // Underlying error.
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	return fmt.Sprintf("parameter %d (%q): %v", e.Index, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntryError) Unwrap() error {
	return e.Err
}
