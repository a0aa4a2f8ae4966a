package replay

import "errors"

// Sentinel kinds for replay generation.
var (
	ErrNilMatch    = errors.New("replay: match or registry is nil")
	ErrModeMissing = errors.New("replay: match has no mode")
)
