package config

import "errors"

var (
	// ErrRead is returned when the configuration file cannot be read.
	ErrRead = errors.New("config: read failed")

	// ErrDecode is returned when the merged settings do not fit Config.
	ErrDecode = errors.New("config: decode failed")

	// ErrInvalid is returned by Validate.
	ErrInvalid = errors.New("config: invalid")
)
