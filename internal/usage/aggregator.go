// Package usage derives a user's watched count from stored watch events.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Summer is the slice of the event store the aggregator reads from.
type Summer interface {
	SumCounts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Aggregator recomputes usage from raw events. It holds no state, so two calls
// over an unchanged event set always agree.
type Aggregator struct{}

func NewAggregator() Aggregator {
	return Aggregator{}
}

// Recompute returns the sum of event counts for userID watched at or after since.
func (Aggregator) Recompute(ctx context.Context, events Summer, userID uuid.UUID, since time.Time) (int, error) {
	total, err := events.SumCounts(ctx, userID, since)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, nil
	}
	return total, nil
}

// MonthStart returns midnight on the first day of t's calendar month, in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
