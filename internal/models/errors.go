package models

import "errors"

// Engine error taxonomy. Callers match these with errors.Is; wrapped values
// carry the operation-specific detail. Declined outcomes (a transfer returning
// false, an execute finding no match) are normal results, not errors.
var (
	// ErrValidation reports a non-positive wager, price, or weight.
	ErrValidation = errors.New("validation failed")

	// ErrCapacityExceeded reports that the winners set is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInsufficientBalance reports that a wager or settlement exceeds the
	// user's available karma.
	ErrInsufficientBalance = errors.New("insufficient karma balance")

	// ErrDailyLimitExceeded reports that a peer transfer would exceed the
	// per-cycle transfer cap.
	ErrDailyLimitExceeded = errors.New("daily transfer limit exceeded")

	// ErrDuplicateOrder reports that the user already has an open order.
	ErrDuplicateOrder = errors.New("user already has an open order")

	// ErrAlreadyAssigned reports a lottery re-run in the same cycle without
	// an intervening reset.
	ErrAlreadyAssigned = errors.New("lottery already ran this cycle")

	// ErrNotEligible reports a roster-state mismatch: the buyer already holds
	// a slot, the seller does not hold one, or the user is not a candidate.
	ErrNotEligible = errors.New("user not eligible")
)
