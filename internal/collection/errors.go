package collection

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

var (
	// ErrColumnMismatch is returned when two collections must share a column set and do not.
	ErrColumnMismatch = errors.New("column sets differ")
	// ErrDuplicateColumn is returned when a column name appears twice.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrLengthMismatch is returned when a column does not match the collection length.
	ErrLengthMismatch = errors.New("column length mismatch")
	// ErrUnknownColumn is returned when a named column is absent.
	ErrUnknownColumn = errors.New("unknown column")
)

// EmptyCollectionError is returned when a selection runs over zero rows.
type EmptyCollectionError struct {
	Column string
}

func (e *EmptyCollectionError) Error() string {
	return fmt.Sprintf("cannot select by %q from an empty collection", e.Column)
}

// UnknownParameterError reports a parameter column with no matching path in
// the base configuration.
type UnknownParameterError struct {
	Column string
	Err    error
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown parameter %q: %v", e.Column, e.Err)
}

func (e *UnknownParameterError) Unwrap() error {
	return e.Err
}

func (e *UnknownParameterError) Is(target error) bool {
	return target == config.ErrConfiguration
}
