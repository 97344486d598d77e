package ledger

import (
	"errors"
	"fmt"
)

// Failure kinds of a single Load-compute-Save cycle. Callers match them with
// errors.Is and pick the user-facing text per kind.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrDegenerateState = errors.New("degenerate ledger state")
)

// Finer causes, each wrapping one of the kinds above.
var (
	ErrMissingArgument    = fmt.Errorf("%w: missing argument", ErrInvalidInput)
	ErrNotNumeric         = fmt.Errorf("%w: not a number", ErrInvalidInput)
	ErrNotPositive        = fmt.Errorf("%w: value must be positive", ErrInvalidInput)
	ErrPercentOutOfRange  = fmt.Errorf("%w: percent must be in (0, 100]", ErrInvalidInput)
	ErrOutOfBounds        = fmt.Errorf("%w: number too large or too precise", ErrInvalidInput)
	ErrNoOpenPosition     = fmt.Errorf("%w: no open position", ErrDegenerateState)
	ErrEmptyPositionAfter = fmt.Errorf("%w: position would hold no asset", ErrDegenerateState)
)
