package container

import "errors"

var (
	// ErrInvariant marks a contract violation by the caller: malformed route or
	// input, plural/singular mismatches, or missing record ids. Operations that
	// return it have stopped at the violation and must not be retried.
	ErrInvariant = errors.New("container: invariant violation")
)
