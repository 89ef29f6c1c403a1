package watch

import (
	"time"

	"github.com/google/uuid"
)

// Event mirrors the watch_events table: one row per (user, video) pair.
type Event struct {
	UserID    uuid.UUID `json:"user_id"`
	VideoID   int64     `json:"video_id"`
	WatchedAt time.Time `json:"watched_at"`
	Count     int       `json:"count"`
}
