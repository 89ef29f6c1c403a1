package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
	"github.com/beheryahmed1991/watch-metering.git/internal/watch"
)

var errBoom = errors.New("boom")

func activeSub(userID uuid.UUID) subscription.Subscription {
	now := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	return subscription.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		Plan:      subscription.PlanBasic,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 30),
		MaxVideos: 100,
		IsActive:  true,
	}
}

func TestStore_EventsUpsertAndSum(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	t0 := time.Date(2026, time.October, 10, 8, 0, 0, 0, time.UTC)

	err := s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		ev, err := st.Events.Upsert(ctx, userID, 7, t0)
		require.NoError(t, err)
		assert.Equal(t, 1, ev.Count)

		ev, err = st.Events.Upsert(ctx, userID, 7, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, ev.Count)
		assert.True(t, ev.WatchedAt.Equal(t0.Add(time.Hour)))

		_, err = st.Events.Upsert(ctx, userID, 9, t0.Add(-48*time.Hour))
		require.NoError(t, err)

		total, err := st.Events.SumCounts(ctx, userID, t0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		total, err = st.Events.SumCounts(ctx, userID, t0.Add(-72*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		events, err := st.Events.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, int64(7), events[0].VideoID)
		assert.Equal(t, int64(9), events[1].VideoID)

		n, err := st.Events.DeleteBefore(ctx, userID, t0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	})
	require.NoError(t, err)

	err = s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		n, err := st.Events.DeleteAll(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		total, err := st.Events.SumCounts(ctx, userID, time.Time{})
		require.NoError(t, err)
		assert.Zero(t, total)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	sub := activeSub(userID)

	err := s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		_, err := st.Subscriptions.GetActive(ctx, userID)
		assert.ErrorIs(t, err, subscription.ErrNotFound)

		_, err = st.Subscriptions.Insert(ctx, sub)
		require.NoError(t, err)

		_, err = st.Subscriptions.Insert(ctx, activeSub(userID))
		assert.ErrorIs(t, err, subscription.ErrConflict)

		updated, err := st.Subscriptions.UpdateUsage(ctx, sub.ID, subscription.UsageUpdate{TotalWatched: 4, LastWatchedMonth: 10, LastWatchedYear: 2026})
		require.NoError(t, err)
		assert.Equal(t, 4, updated.TotalWatched)

		assert.ErrorIs(t, st.Subscriptions.Delete(ctx, userID, uuid.New()), subscription.ErrNotFound)
		require.NoError(t, st.Subscriptions.Delete(ctx, userID, sub.ID))

		_, err = st.Subscriptions.GetActive(ctx, userID)
		assert.ErrorIs(t, err, subscription.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_WithinUserRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	sub := activeSub(userID)
	t0 := time.Date(2026, time.October, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		if _, err := st.Subscriptions.Insert(ctx, sub); err != nil {
			return err
		}
		_, err := st.Events.Upsert(ctx, userID, 1, t0)
		return err
	}))

	err := s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		if _, err := st.Events.DeleteAll(ctx, userID); err != nil {
			return err
		}
		if err := st.Subscriptions.Delete(ctx, userID, sub.ID); err != nil {
			return err
		}
		_, err := st.Events.Upsert(ctx, userID, 2, t0)
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	require.NoError(t, s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		got, err := st.Subscriptions.GetActive(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)

		events, err := st.Events.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, watch.Event{UserID: userID, VideoID: 1, WatchedAt: t0, Count: 1}, events[0])
		return nil
	}))
}

func TestStore_WithinUserRestoresOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	sub := activeSub(userID)
	t0 := time.Date(2026, time.October, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		if _, err := st.Subscriptions.Insert(ctx, sub); err != nil {
			return err
		}
		_, err := st.Events.Upsert(ctx, userID, 1, t0)
		return err
	}))

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.WithinUser(ctx, userID, func(st subscription.Stores) error {
			_, err := st.Events.DeleteAll(ctx, userID)
			require.NoError(t, err)
			require.NoError(t, st.Subscriptions.Delete(ctx, userID, sub.ID))
			panic("boom")
		})
	})
	assert.Zero(t, s.locks.size())

	require.NoError(t, s.WithinUser(ctx, userID, func(st subscription.Stores) error {
		got, err := st.Subscriptions.GetActive(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)

		events, err := st.Events.List(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, events, 1)
		return nil
	}))
}

func TestStore_WithinUserWaitHonorsDeadline(t *testing.T) {
	s := New()
	userID := uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.WithinUser(context.Background(), userID, func(subscription.Stores) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := s.WithinUser(ctx, userID, func(subscription.Stores) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)
	assert.Zero(t, s.locks.size())
}

func TestStore_WithinUserCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().WithinUser(ctx, uuid.New(), func(subscription.Stores) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_WithinUserSerializesSameUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		guard   sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinUser(ctx, userID, func(subscription.Stores) error {
				guard.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				guard.Unlock()

				time.Sleep(time.Millisecond)

				guard.Lock()
				inside--
				guard.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, s.locks.size())
}

func TestStore_WithinUserDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := uuid.New(), uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.WithinUser(ctx, a, func(subscription.Stores) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := s.WithinUser(ctx, b, func(subscription.Stores) error { return nil })
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}
