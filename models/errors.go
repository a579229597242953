package models

import (
	"errors"
	"fmt"
)

// Stable error set for the ledger and its gates. Handlers map these onto
// HTTP statuses and machine-readable codes so partner integrations can
// branch without parsing prose.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUserNotFound         = errors.New("user not found")
	ErrRewardNotFound       = errors.New("reward not found")
	ErrOutOfStock           = errors.New("reward out of stock")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrAlreadyReferred      = errors.New("referral already set")
	ErrSelfReferral         = errors.New("self referral not allowed")
	ErrReferralCodeNotFound = errors.New("referral code not found")
)

// CooldownError is returned when a first withdrawal is attempted before the
// holding period has elapsed. DaysRemaining is whole days, rounded up, for
// display.
type CooldownError struct {
	DaysRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("first withdrawal locked for %d more day(s)", e.DaysRemaining)
}
