package subscription

import "errors"

var (
	ErrInvalidAccountID = errors.New("account ID must be a positive integer")
	ErrInvalidDuration  = errors.New("comp duration must be between 1 and 100 months")
	ErrAccountNotFound  = errors.New("account not found")

	ErrAlreadyComped = errors.New("account already has a comped subscription")

	ErrProviderNotConfigured = errors.New("subscription provider not configured")
	ErrProviderMisconfigured = errors.New("invalid subscription provider configuration")
	ErrProviderUnavailable   = errors.New("subscription provider unavailable")
	ErrCompNotSupported      = errors.New("provider does not support comped subscriptions")

	ErrNoCachedRecord = errors.New("no cached subscription record available")

	ErrMissingAPIEndpoint = errors.New("entitlement API endpoint is required")
	ErrMissingAPIKey      = errors.New("entitlement API key is required")
)
