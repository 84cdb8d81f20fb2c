package substore

import "errors"

var (
	ErrEmptyProviderID = errors.New("provider ID must not be empty")
	ErrInvalidSort     = errors.New("invalid sort field")
)
