package registry

import "errors"

// Sentinel kinds for registry lookups.
var (
	ErrUnknownActor   = errors.New("unknown actor token")
	ErrDuplicateToken = errors.New("duplicate entity token")
)
