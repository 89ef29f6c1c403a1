package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription mirrors the database schema for the subscriptions table.
// TotalWatched is a cache of the aggregated watch events and is refreshed
// whenever usage is displayed or gated.
type Subscription struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	Plan             Plan            `json:"plan"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Price            decimal.Decimal `json:"price"`
	MaxVideos        int             `json:"max_videos"`
	IsActive         bool            `json:"is_active"`
	TotalWatched     int             `json:"total_watched"`
	LastWatchedMonth int             `json:"last_watched_month"`
	LastWatchedYear  int             `json:"last_watched_year"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Remaining is the number of watches left before the quota is reached.
func (s Subscription) Remaining() int {
	if left := s.MaxVideos - s.TotalWatched; left > 0 {
		return left
	}
	return 0
}

// CreateParams carries a subscribe request. Price and EndDate are only read
// for Custom plans; named plans take both from the catalogue.
type CreateParams struct {
	UserID  uuid.UUID
	Plan    Plan
	Price   decimal.Decimal
	EndDate time.Time
}

// UsageUpdate carries the refreshed cache fields written back after a recompute.
type UsageUpdate struct {
	TotalWatched     int
	LastWatchedMonth int
	LastWatchedYear  int
}
