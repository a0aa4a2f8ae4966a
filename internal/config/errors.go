package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig is returned when the YAML file or the environment cannot be read.
	ErrLoadConfig = errors.New("load config failed")
	// ErrDecodeConfig is returned when loaded values do not fit the Config fields.
	ErrDecodeConfig = errors.New("decode config failed")
)
