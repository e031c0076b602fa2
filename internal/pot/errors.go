package pot

import "errors"

// Domain errors for the pot package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, pot.ErrPotNotFound) {
//	    // handle not found case
//	}
var (
	// ErrPotNotFound is returned when a pot id does not exist.
	ErrPotNotFound = errors.New("pot: not found")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("pot: user not found")

	// ErrNoOwner is returned when a pot has no active owner connection.
	ErrNoOwner = errors.New("pot: no active owner")

	// ErrOwnerConflict is returned when an insert would create a second
	// active owner for a pot. Callers retry as a non-owner connection.
	ErrOwnerConflict = errors.New("pot: active owner already exists")

	// ErrAlreadyConnected is returned when a user already has a connection
	// to the pot.
	ErrAlreadyConnected = errors.New("pot: user already connected")

	// ErrResetTimeout is returned when a pot does not confirm its factory
	// reset within the transfer window.
	ErrResetTimeout = errors.New("pot: reset confirmation timed out")

	// ErrTransferIncomplete is returned when the pot confirmed its reset
	// but the ownership swap could not be persisted. The reset is done and
	// cannot be undone; the caller must surface this state, not retry the
	// wait.
	ErrTransferIncomplete = errors.New("pot: reset confirmed but ownership not persisted")

	// ErrInvalidDuration is returned for non-positive watering durations.
	ErrInvalidDuration = errors.New("pot: invalid watering duration")

	// ErrInvalidConfig is returned when device configuration validation fails.
	ErrInvalidConfig = errors.New("pot: invalid configuration")

	// ErrInvalidMeasurement is returned when telemetry validation fails.
	ErrInvalidMeasurement = errors.New("pot: invalid measurement")
)
