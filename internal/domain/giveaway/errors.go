package giveaway

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("giveaway not found")
	ErrInvalidState             = errors.New("invalid giveaway state")
	ErrInsufficientParticipants = errors.New("not enough participants for prize slots")
	ErrNoParticipants           = errors.New("giveaway has no participants")
	ErrInvalidTime              = errors.New("publish time must be in the future")
	ErrPersistenceFailure       = errors.New("persistence failure")
	ErrAlreadyScheduled         = errors.New("giveaway already scheduled")
	ErrNotScheduled             = errors.New("giveaway is not scheduled")

	// ErrStatusConflict is returned by stores when a conditional status
	// transition finds a different current status.
	ErrStatusConflict = errors.New("status changed concurrently")

	ErrValidation           = errors.New("validation failed")
	ErrForbidden            = errors.New("forbidden")
	ErrAlreadyParticipating = errors.New("user already participates")
	ErrGiveawayFull         = errors.New("participant limit reached")
	ErrNotSubscribed        = errors.New("required channel subscription missing")
	ErrChallengeRequired    = errors.New("challenge not passed")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrWinnerNotFound       = errors.New("winner not found")
)

// PersistenceError wraps a store error as ErrPersistenceFailure unless it
// already carries a taxonomy error the caller should see.
func PersistenceError(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStatusConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, op, err)
}
