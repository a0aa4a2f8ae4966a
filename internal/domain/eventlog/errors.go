package eventlog

import "errors"

// Sentinel kinds for log decoding.
var (
	ErrMissingHeader = errors.New("missing log header")
	ErrMalformedLine = errors.New("malformed log line")
	ErrUnknownRecord = errors.New("unknown record kind")
	ErrModeMismatch  = errors.New("match mode does not match expected variant")
	ErrFalseStart    = errors.New("false start: no match produced")
)
