// Package postgres runs the metering stores inside PostgreSQL transactions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
	"github.com/beheryahmed1991/watch-metering.git/internal/watch"
)

var _ subscription.Transactor = (*Transactor)(nil)

// Transactor opens one transaction per unit of work and takes a
// transaction-scoped advisory lock keyed by a 64-bit hash of the user id. The
// lock is released on commit or rollback.
type Transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinUser(ctx context.Context, userID uuid.UUID, fn func(subscription.Stores) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID.String()); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}

	if err = fn(subscription.Stores{
		Subscriptions: subscription.NewRepository(tx),
		Events:        watch.NewRepository(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
