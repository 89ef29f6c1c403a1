package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/metrics"
	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
	"github.com/beheryahmed1991/watch-metering.git/internal/usage"
)

// Gate enforces the watch quota. The check and the write happen in the same
// unit of work, so two concurrent requests for one user cannot both take the
// last slot.
type Gate struct {
	tx      subscription.Transactor
	agg     usage.Aggregator
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewGate(tx subscription.Transactor, log *slog.Logger, m *metrics.Metrics) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		tx:      tx,
		agg:     usage.NewAggregator(),
		log:     log.With("component", "quota"),
		metrics: m,
	}
}

// RegisterWatch records one watch of videoID at now if the user's quota allows it.
func (g *Gate) RegisterWatch(ctx context.Context, userID uuid.UUID, videoID int64, now time.Time) (Decision, error) {
	start := time.Now()

	var decision Decision
	err := g.tx.WithinUser(ctx, userID, func(s subscription.Stores) error {
		sub, err := s.Subscriptions.GetActive(ctx, userID)
		if errors.Is(err, subscription.ErrNotFound) {
			decision = Denied(ReasonNoSubscription, 0, 0)
			return nil
		}
		if err != nil {
			return err
		}

		used, err := g.agg.Recompute(ctx, s.Events, userID, sub.StartDate)
		if err != nil {
			return err
		}
		if used >= sub.MaxVideos {
			decision = Denied(ReasonQuotaExceeded, used, sub.MaxVideos)
			return nil
		}

		if _, err := s.Events.Upsert(ctx, userID, videoID, now); err != nil {
			return err
		}
		total, err := g.agg.Recompute(ctx, s.Events, userID, sub.StartDate)
		if err != nil {
			return err
		}
		if _, err := s.Subscriptions.UpdateUsage(ctx, sub.ID, subscription.UsageUpdate{
			TotalWatched:     total,
			LastWatchedMonth: int(now.Month()),
			LastWatchedYear:  now.Year(),
		}); err != nil {
			return err
		}

		decision = Allowed(total, sub.MaxVideos)
		return nil
	})
	if err != nil {
		g.log.Error("register watch failed", "user_id", userID, "video_id", videoID, "err", err)
		return Decision{}, err
	}

	g.metrics.ObserveDecision(decision.outcome(), string(decision.Reason), time.Since(start))
	if !decision.Allowed {
		g.log.Debug("watch denied", "user_id", userID, "video_id", videoID, "reason", decision.Reason)
	}
	return decision, nil
}
