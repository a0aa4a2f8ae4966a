package model

import "errors"

// Sentinel kinds for model parsing.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrUnknownMode      = errors.New("unknown mode")
	ErrUnknownRole      = errors.New("unknown role")
)
