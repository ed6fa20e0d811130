package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure: an empty listen address,
	// non-positive queue or worker sizes, an unknown store, or rating
	// coefficients the engine would refuse.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig wraps failures reading the YAML file or FURLONG_
	// environment, and unmarshalling them onto Config.
	ErrLoadConfig = errors.New("load config failed")
)
