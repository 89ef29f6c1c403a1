package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/db"
)

const subscriptionColumns = `id, user_id, plan, start_date, end_date, price, max_videos, is_active,
		total_watched, last_watched_month, last_watched_year, created_at, updated_at`

var _ Store = (*Repository)(nil)

// Repository handles persistence for subscriptions.
type Repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Plan,
		&sub.StartDate,
		&sub.EndDate,
		&sub.Price,
		&sub.MaxVideos,
		&sub.IsActive,
		&sub.TotalWatched,
		&sub.LastWatchedMonth,
		&sub.LastWatchedYear,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}

func (r *Repository) GetActive(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND is_active`

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, fmt.Errorf("select active subscription: %w", err)
	}

	return sub, nil
}

func (r *Repository) Insert(ctx context.Context, s Subscription) (Subscription, error) {
	query := `
		INSERT INTO subscriptions (id, user_id, plan, start_date, end_date, price, max_videos, is_active,
			total_watched, last_watched_month, last_watched_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + subscriptionColumns

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query,
		s.ID,
		s.UserID,
		s.Plan,
		s.StartDate,
		s.EndDate,
		s.Price,
		s.MaxVideos,
		s.IsActive,
		s.TotalWatched,
		s.LastWatchedMonth,
		s.LastWatchedYear,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Subscription{}, ErrConflict
		}
		return Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}

	return sub, nil
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const query = `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2 AND is_active`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateUsage(ctx context.Context, id uuid.UUID, update UsageUpdate) (Subscription, error) {
	query := `
		UPDATE subscriptions
		SET total_watched = $1, last_watched_month = $2, last_watched_year = $3, updated_at = now()
		WHERE id = $4
		RETURNING ` + subscriptionColumns

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query,
		update.TotalWatched,
		update.LastWatchedMonth,
		update.LastWatchedYear,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, fmt.Errorf("update subscription usage: %w", err)
	}

	return sub, nil
}
