package subscription

import "errors"

var (
	// ErrConflict is returned when the user already holds an active subscription.
	ErrConflict = errors.New("active subscription already exists")
	// ErrInvalidPlan is returned for unknown plans and bad Custom plan input.
	ErrInvalidPlan = errors.New("invalid plan")
	ErrNotFound    = errors.New("subscription not found")
)
