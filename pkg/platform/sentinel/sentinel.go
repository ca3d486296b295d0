package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (wrapped with %w) and the
// credential and wallet components translate them into coded domain errors.
//
// - ErrNotFound: no row for the requested key (code, token, identity, address)
// - ErrAlreadyUsed: a unique key is already taken (code, identity commitment)
// - ErrInvalidState: the row exists but is in the wrong state for the mutation
// - ErrUnavailable: backing service unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
