package workflow

import "errors"

// Typed workflow failures. The boundary layer maps these onto 4xx-equivalent
// outcomes; they are never silently swallowed.
var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnauthorized indicates the acting user is not allowed to perform the
	// action (wrong requester, or not the active approver for the current step).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState indicates the order status does not admit the requested
	// transition.
	ErrInvalidState = errors.New("invalid order state")
	// ErrConflict indicates a compare-and-swap write lost to a concurrent
	// update. Callers should reload and retry.
	ErrConflict = errors.New("order version conflict")
	// ErrNoQualifiedApprover indicates a required approval level could not be
	// resolved to any user with sufficient approval authority.
	ErrNoQualifiedApprover = errors.New("no qualified approver for required approval level")
)
