package watch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the append-and-increment ledger of watch events. Every method is
// scoped to a single user.
type Store interface {
	// Upsert creates the (user, video) event with count 1, or increments its
	// count and moves WatchedAt to now.
	Upsert(ctx context.Context, userID uuid.UUID, videoID int64, now time.Time) (Event, error)
	// SumCounts sums Count over the user's events with WatchedAt >= since.
	SumCounts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	// DeleteBefore removes events with WatchedAt strictly before cutoff.
	DeleteBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
	// List returns the user's events, most recently watched first.
	List(ctx context.Context, userID uuid.UUID) ([]Event, error)
}
