package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/db"
)

var _ Store = (*Repository)(nil)

// Repository handles persistence for watch events.
type Repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID, videoID int64, now time.Time) (Event, error) {
	const query = `
		INSERT INTO watch_events (user_id, video_id, watched_at, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, video_id) DO UPDATE
		SET watched_at = EXCLUDED.watched_at,
		    count = watch_events.count + 1
		RETURNING user_id, video_id, watched_at, count`

	var ev Event
	if err := r.db.QueryRowContext(ctx, query, userID, videoID, now).Scan(
		&ev.UserID,
		&ev.VideoID,
		&ev.WatchedAt,
		&ev.Count,
	); err != nil {
		return Event{}, fmt.Errorf("upsert watch event: %w", err)
	}

	return ev, nil
}

func (r *Repository) SumCounts(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	const query = `
		SELECT COALESCE(SUM(count), 0)
		FROM watch_events
		WHERE user_id = $1 AND watched_at >= $2`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum watch events: %w", err)
	}
	return int(total), nil
}

func (r *Repository) DeleteBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM watch_events WHERE user_id = $1 AND watched_at < $2`

	result, err := r.db.ExecContext(ctx, query, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune watch events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return rows, nil
}

func (r *Repository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `DELETE FROM watch_events WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete watch events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rows affected: %w", err)
	}
	return rows, nil
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	const query = `
		SELECT user_id, video_id, watched_at, count
		FROM watch_events
		WHERE user_id = $1
		ORDER BY watched_at DESC, video_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list watch events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		if err := rows.Scan(
			&ev.UserID,
			&ev.VideoID,
			&ev.WatchedAt,
			&ev.Count,
		); err != nil {
			return nil, fmt.Errorf("scan watch event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch events: %w", err)
	}

	return events, nil
}
