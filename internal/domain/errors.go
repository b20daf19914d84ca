package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every engine failure wraps exactly one of these so callers can
// classify it with errors.Is and map it to a transport status code. All of
// them are recoverable by the caller correcting input or waiting for a state
// change; none leave partial state behind.
var (
	// ErrValidation covers malformed input: empty question, mismatched
	// option arrays, zero or negative quantity, out-of-range option index,
	// duration outside the configured bounds.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized covers callers lacking a required capability or
	// relationship (not the creator, not a resolver, not the operator).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrState covers operations invalid for the market's current lifecycle
	// state: trading on a resolved market, resolving a disputed market,
	// claiming twice.
	ErrState = errors.New("invalid state")

	// ErrInsufficient covers insufficient shares, ledger balance or
	// allowance, or free-pool remainder.
	ErrInsufficient = errors.New("insufficient resources")

	// ErrSlippage covers trades whose computed price or cost falls outside
	// the caller-supplied bounds.
	ErrSlippage = errors.New("slippage bounds exceeded")

	// ErrNotFound is returned by read accessors and stores for unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrOverflow is returned when fixed-point arithmetic would overflow.
	// Overflow is rejected, never wrapped around.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrLockHeld is returned by LockManager.Acquire when another holder
	// already owns the lock.
	ErrLockHeld = errors.New("lock already held")
)

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Unauthorizedf builds an error wrapping ErrUnauthorized.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}

// Statef builds an error wrapping ErrState.
func Statef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrState)...)
}

// Insufficientf builds an error wrapping ErrInsufficient.
func Insufficientf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInsufficient)...)
}

// Slippagef builds an error wrapping ErrSlippage.
func Slippagef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrSlippage)...)
}
