package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/watch"
)

// Store persists subscription records.
type Store interface {
	// GetActive returns ErrNotFound when the user has no active subscription.
	GetActive(ctx context.Context, userID uuid.UUID) (Subscription, error)
	// Insert returns ErrConflict if the user already has an active subscription.
	Insert(ctx context.Context, sub Subscription) (Subscription, error)
	// Delete removes the active subscription id owned by userID, or returns ErrNotFound.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	UpdateUsage(ctx context.Context, id uuid.UUID, update UsageUpdate) (Subscription, error)
}

// Stores is the pair of stores visible inside one unit of work.
type Stores struct {
	Subscriptions Store
	Events        watch.Store
}

// Transactor runs fn as one atomic unit holding an exclusive per-user scope.
// Calls for different users do not block each other. If fn returns an error
// every change made through the Stores is discarded.
type Transactor interface {
	WithinUser(ctx context.Context, userID uuid.UUID, fn func(Stores) error) error
}
