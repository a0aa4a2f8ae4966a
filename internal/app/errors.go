package service

import "errors"

// Sentinel kinds for service operations.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBackpressure   = errors.New("import queue is full")
	ErrRejected       = errors.New("match rejected")
	ErrInvalidLimit   = errors.New("invalid leaderboard limit")
	ErrInvalidRequest = errors.New("invalid request")
)
