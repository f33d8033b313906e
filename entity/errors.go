package entity

import "errors"

// Outcome errors of the pot engine. Contention results (AlreadySold,
// AlreadyPurchased) and idempotent transitions (AlreadyClosed,
// AlreadyRevealed) are expected under normal operation; callers check
// them with errors.Is and report them as ordinary outcomes.
var (
	// ErrDuplicatePot is returned when a pot already exists for the date
	ErrDuplicatePot = errors.New("pot already exists for this date")

	// ErrPotNotFound is returned when the requested pot doesn't exist
	ErrPotNotFound = errors.New("pot not found")

	// ErrPotNotOpen is returned when a ticket is claimed outside the sales window
	ErrPotNotOpen = errors.New("pot is not open")

	// ErrPotFull is returned when all tickets of the pot are claimed
	ErrPotFull = errors.New("pot is full")

	// ErrAlreadySold is returned when the ticket code was claimed by another user
	ErrAlreadySold = errors.New("ticket already sold")

	// ErrAlreadyPurchased is returned when the user already holds a ticket in the pot
	ErrAlreadyPurchased = errors.New("user already holds a ticket in this pot")

	// ErrInsufficientFunds is returned when a debit would drive a balance below zero
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyClosed is returned on a close of a pot that is not OPEN
	ErrAlreadyClosed = errors.New("pot already closed")

	// ErrAlreadyRevealed is returned on a reveal of a pot that is not CLOSED
	ErrAlreadyRevealed = errors.New("pot already revealed")

	// ErrPotStillOpen is returned on a reveal attempted before the pot was closed
	ErrPotStillOpen = errors.New("pot is still open")

	// ErrUserNotFound is returned when the user is not registered
	ErrUserNotFound = errors.New("user not found")

	// ErrPayoutNotFound is returned when the payout record doesn't exist
	ErrPayoutNotFound = errors.New("payout record not found")

	// ErrPayoutSettled is returned when settling a payout that is no longer PENDING
	ErrPayoutSettled = errors.New("payout record already settled")

	// ErrStorageUnavailable wraps storage-level failures; fatal to the
	// current operation only, the scheduler retries on its next tick
	ErrStorageUnavailable = errors.New("storage unavailable")
)
