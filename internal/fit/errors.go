package fit

import "errors"

var (
	// ErrNonFinite is returned under NanRaise when a residual is NaN or Inf.
	ErrNonFinite = errors.New("fit: non-finite residual")

	// ErrNoFreeParams indicates every parameter is fixed.
	ErrNoFreeParams = errors.New("fit: no varying parameters")

	// ErrUnknownPolicy indicates an unrecognized NaN policy name.
	ErrUnknownPolicy = errors.New("fit: unknown nan policy")
)
