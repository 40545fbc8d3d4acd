package game

import "errors"

// Errors shared across engines. None of them is fatal and none leaves state mutated.
var (
	ErrNoActiveGame          = errors.New("no active game at this table")
	ErrNotYourTurn           = errors.New("it is not your turn")
	ErrTableOccupied         = errors.New("a game is already running at this table")
	ErrAlreadyClaimedToday   = errors.New("daily reward already claimed today")
	ErrAlreadyAttemptedToday = errors.New("robbery already attempted today")
	ErrNoEligibleTargets     = errors.New("no eligible targets")
	ErrUnknownAction         = errors.New("unknown action type")
	ErrMissingParam          = errors.New("missing parameter")
)

// ValidationError marks bad user input: malformed amounts, limits, options.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a ValidationError.
func Invalid(err error) error {
	return &ValidationError{Err: err}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
