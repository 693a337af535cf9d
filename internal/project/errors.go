package project

import "errors"

// Error taxonomy. Callers match with errors.Is; messages carry the offending id.
var (
	// ErrNotFound marks an unknown entity id or resource.
	ErrNotFound = errors.New("not found")
	// ErrBadInput marks malformed or missing required fields.
	ErrBadInput = errors.New("bad input")
	// ErrInvariantViolation marks a programming error, such as a
	// single-result read that produced a collection. Never retried.
	ErrInvariantViolation = errors.New("invariant violation")
)

// IsUserError reports whether err should surface to a tool caller as an
// error result rather than a protocol failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadInput)
}
