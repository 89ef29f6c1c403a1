package quota_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/beheryahmed1991/watch-metering.git/internal/metrics"
	"github.com/beheryahmed1991/watch-metering.git/internal/quota"
	"github.com/beheryahmed1991/watch-metering.git/internal/store/memory"
	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
)

type fixture struct {
	store  *memory.Store
	ledger *subscription.Ledger
	gate   *quota.Gate
	m      *metrics.Metrics
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store: memory.New(),
		m:     metrics.New(prometheus.NewRegistry()),
		now:   time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC),
	}
	f.ledger = subscription.NewLedger(f.store, log, subscription.WithClock(func() time.Time { return f.now }))
	f.gate = quota.NewGate(f.store, log, f.m)
	return f
}

// subscribe opens a Custom plan worth exactly limit watches.
func (f *fixture) subscribe(t *testing.T, userID uuid.UUID, limit int) subscription.Subscription {
	t.Helper()
	// ceil(5/3 * 3 days * price) == limit when price == limit/5
	price := decimal.NewFromInt(int64(limit)).Div(decimal.NewFromInt(5))
	sub, err := f.ledger.Create(context.Background(), subscription.CreateParams{
		UserID:  userID,
		Plan:    subscription.PlanCustom,
		Price:   price,
		EndDate: f.now.AddDate(0, 0, 3),
	})
	require.NoError(t, err)
	require.Equal(t, limit, sub.MaxVideos)
	return sub
}

func TestGate_NoSubscription(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	d, err := f.gate.RegisterWatch(context.Background(), userID, 1, f.now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, quota.ReasonNoSubscription, d.Reason)

	history, err := f.ledger.History(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.WatchDecisions.WithLabelValues("denied", "no_subscription")))
}

func TestGate_AllowsUntilQuotaThenDenies(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.subscribe(t, userID, 3)

	for i := 1; i <= 3; i++ {
		d, err := f.gate.RegisterWatch(context.Background(), userID, int64(i), f.now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 3, d.Limit)
	}

	d, err := f.gate.RegisterWatch(context.Background(), userID, 99, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, quota.ReasonQuotaExceeded, d.Reason)
	assert.Equal(t, 3, d.Count)

	history, err := f.ledger.History(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, history, 3, "a denied watch must not write an event")

	sub, err := f.ledger.GetActive(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.TotalWatched)

	assert.Equal(t, 3.0, testutil.ToFloat64(f.m.WatchDecisions.WithLabelValues("allowed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.WatchDecisions.WithLabelValues("denied", "quota_exceeded")))
}

func TestGate_RewatchCountsAgainstQuota(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.subscribe(t, userID, 5)

	for i := 0; i < 2; i++ {
		_, err := f.gate.RegisterWatch(context.Background(), userID, 42, f.now.Add(time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
	}

	history, err := f.ledger.History(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].Count)
	assert.True(t, history[0].WatchedAt.Equal(f.now.Add(2*time.Minute)))

	total, err := f.ledger.RefreshUsage(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestGate_ZeroQuotaDeniesImmediately(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.ledger.Create(context.Background(), subscription.CreateParams{
		UserID:  userID,
		Plan:    subscription.PlanCustom,
		Price:   decimal.NewFromInt(50),
		EndDate: f.now.Add(6 * time.Hour),
	})
	require.NoError(t, err)

	d, err := f.gate.RegisterWatch(context.Background(), userID, 1, f.now)
	require.NoError(t, err)
	assert.Equal(t, quota.ReasonQuotaExceeded, d.Reason)
}

func TestGate_UpdatesMonthMarkers(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.subscribe(t, userID, 5)

	watchedAt := time.Date(2026, time.November, 2, 9, 0, 0, 0, time.UTC)
	_, err := f.gate.RegisterWatch(context.Background(), userID, 1, watchedAt)
	require.NoError(t, err)

	sub, err := f.ledger.GetActive(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 11, sub.LastWatchedMonth)
	assert.Equal(t, 2026, sub.LastWatchedYear)
	assert.Equal(t, 1, sub.TotalWatched)
}

func TestGate_IgnoresEventsBeforeStart(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	// Kept by the month prune but older than the subscription.
	require.NoError(t, f.store.WithinUser(context.Background(), userID, func(s subscription.Stores) error {
		_, err := s.Events.Upsert(context.Background(), userID, 7, time.Date(2026, time.October, 2, 0, 0, 0, 0, time.UTC))
		return err
	}))
	f.subscribe(t, userID, 1)

	d, err := f.gate.RegisterWatch(context.Background(), userID, 8, f.now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestGate_ConcurrentLastSlot(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.subscribe(t, userID, 5)

	for i := 0; i < 4; i++ {
		d, err := f.gate.RegisterWatch(context.Background(), userID, int64(i+1), f.now.Add(time.Minute))
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	var allowed, denied atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		videoID := int64(100 + i)
		g.Go(func() error {
			d, err := f.gate.RegisterWatch(context.Background(), userID, videoID, f.now.Add(time.Hour))
			if err != nil {
				return err
			}
			if d.Allowed {
				allowed.Add(1)
			} else {
				denied.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), allowed.Load())
	assert.Equal(t, int32(31), denied.Load())

	total, err := f.ledger.RefreshUsage(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestGate_ConcurrentUsersAreIndependent(t *testing.T) {
	f := newFixture(t)
	users := make([]uuid.UUID, 8)
	for i := range users {
		users[i] = uuid.New()
		f.subscribe(t, users[i], 10)
	}

	var g errgroup.Group
	for _, userID := range users {
		for v := 0; v < 10; v++ {
			videoID := int64(v)
			g.Go(func() error {
				_, err := f.gate.RegisterWatch(context.Background(), userID, videoID, f.now.Add(time.Minute))
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	for _, userID := range users {
		total, err := f.ledger.RefreshUsage(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 10, total)
	}
}

func TestGate_CreateAndWatchSerialize(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	sub := f.subscribe(t, userID, 100)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		videoID := int64(i)
		g.Go(func() error {
			_, err := f.gate.RegisterWatch(context.Background(), userID, videoID, f.now.Add(time.Minute))
			return err
		})
	}
	g.Go(func() error {
		return f.ledger.Delete(context.Background(), userID, sub.ID)
	})
	require.NoError(t, g.Wait())

	// Watches before the delete were wiped with it; watches after it were
	// denied. Nothing may survive.
	history, err := f.ledger.History(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGate_DeleteResetsUsageForNextSubscription(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	ctx := context.Background()

	basic, err := f.ledger.Create(ctx, subscription.CreateParams{UserID: userID, Plan: subscription.PlanBasic})
	require.NoError(t, err)
	require.Equal(t, 100, basic.MaxVideos)

	at := f.now
	watch := func(videoID int64) quota.Decision {
		t.Helper()
		at = at.Add(time.Second)
		d, err := f.gate.RegisterWatch(ctx, userID, videoID, at)
		require.NoError(t, err)
		return d
	}

	const videoA = 1
	for i := 1; i <= 50; i++ {
		d := watch(videoA)
		require.True(t, d.Allowed, "watch %d of video A", i)
		require.Equal(t, i, d.Count)
	}
	for videoB := int64(101); videoB <= 150; videoB++ {
		d := watch(videoB)
		require.True(t, d.Allowed, "video %d", videoB)
	}

	cur, err := f.ledger.Current(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 100, cur.TotalWatched)
	assert.Equal(t, 0, cur.Remaining())

	assert.Equal(t, quota.Denied(quota.ReasonQuotaExceeded, 100, 100), watch(999))

	require.NoError(t, f.ledger.Delete(ctx, userID, basic.ID))

	history, err := f.ledger.History(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, history)

	advanced, err := f.ledger.Create(ctx, subscription.CreateParams{UserID: userID, Plan: subscription.PlanAdvanced})
	require.NoError(t, err)
	assert.Equal(t, 0, advanced.TotalWatched)
	assert.Equal(t, 500, advanced.MaxVideos)

	assert.Equal(t, quota.Allowed(1, 500), watch(999))
}
