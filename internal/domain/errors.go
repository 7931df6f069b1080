package domain

import "errors"

var (
	// ErrNotFound is returned by stores and caches when a key has no value.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSession is returned by the exchange client when the API
	// rejects the session token.
	ErrInvalidSession = errors.New("invalid session")

	// ErrRateLimited is returned when a request is refused by the local
	// rate limiter or the exchange throttle.
	ErrRateLimited = errors.New("rate limited")
)
