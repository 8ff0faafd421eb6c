package sparks

import "errors"

var (
	// ErrUnknownModel is returned when the pricing table has no entry for a model.
	ErrUnknownModel = errors.New("unknown model")

	// ErrInsufficientBalance is returned when a debit would drive the balance negative.
	ErrInsufficientBalance = errors.New("insufficient spark balance")

	// ErrAlreadyClaimedToday is returned when the daily grant was already claimed
	// for the current reference-timezone day. Benign, not a failure.
	ErrAlreadyClaimedToday = errors.New("daily sparks already claimed today")

	// ErrUserNotFound is returned for operations against an account that was
	// never created.
	ErrUserNotFound = errors.New("spark account not found")

	// ErrNegativeAmount is returned when a debit amount is negative.
	ErrNegativeAmount = errors.New("debit amount must be non-negative")
)
