package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrLockHeld       = errors.New("lock already held")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")

	// ErrDataUnavailable marks a single venue whose reserves could not be read.
	// The venue is dropped from the snapshot and the cycle continues.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInvalidInput is returned by validating operations for malformed
	// snapshots or out-of-range thresholds.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGasPriceUnavailable is fatal to the current execution attempt.
	ErrGasPriceUnavailable = errors.New("gas price unavailable")

	// ErrExecutionFailure covers rejected submissions and on-chain reverts.
	ErrExecutionFailure = errors.New("execution failure")

	// ErrConfirmationTimeout means the outcome on chain is unknown. The
	// transaction may still be mined.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)
