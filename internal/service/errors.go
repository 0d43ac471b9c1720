package service

import "errors"

// Error taxonomy surfaced by the service layer. Handlers map these to HTTP
// statuses with errors.Is; anything unrecognized is treated as
// ErrPersistence and never leaks detail to the caller.
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrValidation           = errors.New("validation failed")
	ErrPlatformNotConnected = errors.New("platform is not connected")
	// ErrNotFound covers both a missing post and a post owned by someone
	// else, so the response never reveals which.
	ErrNotFound       = errors.New("not found")
	ErrImmutableState = errors.New("post is in a terminal state")
	ErrConflict       = errors.New("post was modified concurrently")
	ErrPersistence    = errors.New("storage failure")
)
