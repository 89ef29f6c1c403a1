package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/metrics"
	"github.com/beheryahmed1991/watch-metering.git/internal/usage"
	"github.com/beheryahmed1991/watch-metering.git/internal/watch"
)

// Service defines the business operations exposed to handlers.
type Service interface {
	Create(context.Context, CreateParams) (Subscription, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	GetActive(ctx context.Context, userID uuid.UUID) (Subscription, error)
	Current(ctx context.Context, userID uuid.UUID) (Subscription, error)
	RefreshUsage(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]watch.Event, error)
	Plans() []PlanSpec
}

var _ Service = (*Ledger)(nil)

// Ledger owns the subscription lifecycle. Every operation runs inside the
// user's unit of work, so create and delete never interleave with a watch
// being gated for the same user.
type Ledger struct {
	tx      Transactor
	agg     usage.Aggregator
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the wall clock. Tests use it to pin month boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(tx Transactor, log *slog.Logger, opts ...Option) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	l := &Ledger{
		tx:  tx,
		agg: usage.NewAggregator(),
		log: log.With("component", "subscription"),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create opens a new subscription for the user. Events older than the first
// day of the current month are pruned in the same unit of work.
func (l *Ledger) Create(ctx context.Context, params CreateParams) (Subscription, error) {
	var (
		created Subscription
		pruned  int64
	)
	err := l.tx.WithinUser(ctx, params.UserID, func(s Stores) error {
		now := l.now()

		_, err := s.Subscriptions.GetActive(ctx, params.UserID)
		switch {
		case err == nil:
			return ErrConflict
		case !errors.Is(err, ErrNotFound):
			return err
		}

		pruned, err = s.Events.DeleteBefore(ctx, params.UserID, usage.MonthStart(now))
		if err != nil {
			return err
		}

		terms, err := Resolve(params, now)
		if err != nil {
			return err
		}

		created, err = s.Subscriptions.Insert(ctx, Subscription{
			ID:               uuid.New(),
			UserID:           params.UserID,
			Plan:             terms.Plan,
			StartDate:        now,
			EndDate:          terms.EndDate,
			Price:            terms.Price,
			MaxVideos:        terms.MaxVideos,
			IsActive:         true,
			TotalWatched:     0,
			LastWatchedMonth: int(now.Month()),
			LastWatchedYear:  now.Year(),
		})
		return err
	})
	l.metrics.SubscriptionOp("create", err)
	if err != nil {
		return Subscription{}, err
	}

	l.metrics.Pruned(pruned)
	l.log.Info("subscription created",
		"user_id", params.UserID,
		"subscription_id", created.ID,
		"plan", created.Plan,
		"max_videos", created.MaxVideos,
		"pruned_events", pruned,
	)
	return created, nil
}

// Delete cancels the user's active subscription and wipes their watch events.
func (l *Ledger) Delete(ctx context.Context, userID, id uuid.UUID) error {
	var wiped int64
	err := l.tx.WithinUser(ctx, userID, func(s Stores) error {
		sub, err := s.Subscriptions.GetActive(ctx, userID)
		if err != nil {
			return err
		}
		if sub.ID != id {
			return ErrNotFound
		}

		wiped, err = s.Events.DeleteAll(ctx, userID)
		if err != nil {
			return err
		}
		return s.Subscriptions.Delete(ctx, userID, id)
	})
	l.metrics.SubscriptionOp("delete", err)
	if err != nil {
		return err
	}

	l.metrics.Pruned(wiped)
	l.log.Info("subscription deleted", "user_id", userID, "subscription_id", id, "wiped_events", wiped)
	return nil
}

func (l *Ledger) GetActive(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	var sub Subscription
	err := l.tx.WithinUser(ctx, userID, func(s Stores) error {
		var err error
		sub, err = s.Subscriptions.GetActive(ctx, userID)
		return err
	})
	return sub, err
}

// Current returns the active subscription with its cached usage refreshed.
func (l *Ledger) Current(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	var sub Subscription
	err := l.tx.WithinUser(ctx, userID, func(s Stores) error {
		var err error
		sub, err = l.refresh(ctx, s, userID)
		return err
	})
	l.metrics.SubscriptionOp("refresh", err)
	return sub, err
}

// RefreshUsage recomputes usage since the subscription start and persists it.
func (l *Ledger) RefreshUsage(ctx context.Context, userID uuid.UUID) (int, error) {
	sub, err := l.Current(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sub.TotalWatched, nil
}

func (l *Ledger) refresh(ctx context.Context, s Stores, userID uuid.UUID) (Subscription, error) {
	sub, err := s.Subscriptions.GetActive(ctx, userID)
	if err != nil {
		return Subscription{}, err
	}

	total, err := l.agg.Recompute(ctx, s.Events, userID, sub.StartDate)
	if err != nil {
		return Subscription{}, err
	}
	if total == sub.TotalWatched {
		return sub, nil
	}

	return s.Subscriptions.UpdateUsage(ctx, sub.ID, UsageUpdate{
		TotalWatched:     total,
		LastWatchedMonth: sub.LastWatchedMonth,
		LastWatchedYear:  sub.LastWatchedYear,
	})
}

// History lists the user's watch events, most recent first.
func (l *Ledger) History(ctx context.Context, userID uuid.UUID) ([]watch.Event, error) {
	var events []watch.Event
	err := l.tx.WithinUser(ctx, userID, func(s Stores) error {
		var err error
		events, err = s.Events.List(ctx, userID)
		return err
	})
	return events, err
}

func (l *Ledger) Plans() []PlanSpec {
	return Catalogue()
}
