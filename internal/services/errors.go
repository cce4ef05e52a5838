package services

import "errors"

// Typed errors returned by the subscription services. Handlers map these to
// HTTP status codes; webhook callers use them to decide between acknowledging
// and asking the provider to redeliver.
var (
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNotOwner             = errors.New("subscription belongs to another user")
	ErrAlreadySubscribed    = errors.New("user already has an active subscription")
	ErrNotCancellable       = errors.New("subscription is not in a cancellable state")
	ErrNotReactivatable     = errors.New("subscription is not in a reactivatable state")
	ErrConflict             = errors.New("subscription was modified concurrently, retry")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
)
