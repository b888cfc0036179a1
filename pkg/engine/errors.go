package engine

import (
	"errors"
	"fmt"
)

// Error kinds mirror how callers react to a failure. Every entry point
// rejects synchronously with one of these; no partial state survives a
// failed call.
var (
	// ErrValidation: unsupported order type, zero quantity, mismatched
	// token pair, size below minimum.
	ErrValidation = errors.New("validation")

	// ErrAuthorization: non-owner edit/cancel, unauthorized ledger read.
	ErrAuthorization = errors.New("unauthorized")

	// ErrState: operating on an unknown or purged reference, or on an
	// order whose status does not admit the operation.
	ErrState = errors.New("invalid state")

	// ErrArithmetic: would-be division by a zero price or an overflow.
	// Matching prevents these structurally; hitting one is a bug.
	ErrArithmetic = errors.New("arithmetic")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func unauthorizedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}

func statef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

func arithmeticf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrArithmetic, fmt.Sprintf(format, args...))
}
