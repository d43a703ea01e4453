package mcmc

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewWalkers indicates an odd walker count or fewer than 2*dim walkers.
	ErrTooFewWalkers = errors.New("mcmc: need an even number of walkers, at least twice the dimension")

	// ErrInvalidSchedule indicates inconsistent steps, burn-in or thinning.
	ErrInvalidSchedule = errors.New("mcmc: invalid steps/burn/thin")

	// ErrBadStart indicates malformed starting positions.
	ErrBadStart = errors.New("mcmc: invalid starting positions")
)

// WalkerError wraps an error with the walker and step it occurred at.
type WalkerError struct {
	Step    int
	Walker  int
	Wrapped error
}

func (e *WalkerError) Error() string {
	return fmt.Sprintf("step %d walker %d: %v", e.Step, e.Walker, e.Wrapped)
}

func (e *WalkerError) Unwrap() error {
	return e.Wrapped
}
