package params

import "errors"

var (
	// ErrDuplicateParam indicates a parameter name was added twice.
	ErrDuplicateParam = errors.New("params: duplicate parameter")

	// ErrUnknownParam indicates a lookup of a name that was never added.
	ErrUnknownParam = errors.New("params: unknown parameter")

	// ErrInvalidBounds indicates min > max or a NaN bound.
	ErrInvalidBounds = errors.New("params: invalid bounds")

	// ErrValueOutOfBounds indicates a value outside [min, max].
	ErrValueOutOfBounds = errors.New("params: value out of bounds")

	// ErrDimensionMismatch indicates a free vector of the wrong length.
	ErrDimensionMismatch = errors.New("params: dimension mismatch")
)
