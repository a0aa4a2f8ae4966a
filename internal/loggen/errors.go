package loggen

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid generator config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrVerification  = errors.New("verification failed")
)
