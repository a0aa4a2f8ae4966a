package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound       = errors.New("account not on leaderboard")
	ErrInvalidLimit   = errors.New("invalid leaderboard limit")
	ErrMatchNotFound  = errors.New("match not found")
	ErrDuplicateMatch = errors.New("match already stored")
	ErrClosed         = errors.New("store closed")
)
