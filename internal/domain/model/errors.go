package model

import "errors"

// Sentinel kinds for domain validation.
var (
	ErrValidation = errors.New("validation failed")
)
