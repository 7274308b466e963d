package dynamo

import "errors"

// Domain errors for the simulation engine.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDiverged indicates the simulation became numerically unstable.
	// This is a fatal fault: it points at a parameter or model bug, not a
	// user-recoverable condition.
	ErrDiverged = errors.New("dynamo: simulation diverged (state non-finite)")

	// ErrParameterBounds indicates a parameter value outside its valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
)
