package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("horse not found")
	ErrAlreadyExists = errors.New("horse already registered")
)
