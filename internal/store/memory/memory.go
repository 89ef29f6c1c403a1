// Package memory is an in-process implementation of the metering stores,
// used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beheryahmed1991/watch-metering.git/internal/subscription"
	"github.com/beheryahmed1991/watch-metering.git/internal/watch"
)

var _ subscription.Transactor = (*Store)(nil)

// Store keeps subscriptions and watch events in maps. WithinUser serializes
// work per user and restores the user's state when the unit of work fails.
type Store struct {
	locks *keyedMutex

	mu            sync.Mutex
	subscriptions map[uuid.UUID]subscription.Subscription
	events        map[uuid.UUID]map[int64]watch.Event
	now           func() time.Time
}

func New() *Store {
	return &Store{
		locks:         newKeyedMutex(),
		subscriptions: make(map[uuid.UUID]subscription.Subscription),
		events:        make(map[uuid.UUID]map[int64]watch.Event),
		now:           time.Now,
	}
}

// WithinUser runs fn while holding the user's lock. The user's state is
// restored if fn returns an error or panics.
func (s *Store) WithinUser(ctx context.Context, userID uuid.UUID, fn func(subscription.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	snap := s.snapshot(userID)
	defer func() {
		if r := recover(); r != nil {
			s.restore(userID, snap)
			panic(r)
		}
	}()

	scope := &userScope{store: s, userID: userID}
	if err := fn(subscription.Stores{Subscriptions: scope, Events: scope}); err != nil {
		s.restore(userID, snap)
		return err
	}
	return nil
}

type snapshot struct {
	sub    subscription.Subscription
	hasSub bool
	events map[int64]watch.Event
}

func (s *Store) snapshot(userID uuid.UUID) snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{events: make(map[int64]watch.Event, len(s.events[userID]))}
	snap.sub, snap.hasSub = s.subscriptions[userID]
	for id, ev := range s.events[userID] {
		snap.events[id] = ev
	}
	return snap
}

func (s *Store) restore(userID uuid.UUID, snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.hasSub {
		s.subscriptions[userID] = snap.sub
	} else {
		delete(s.subscriptions, userID)
	}
	if len(snap.events) == 0 {
		delete(s.events, userID)
		return
	}
	s.events[userID] = snap.events
}

// userScope is the view of the store handed to one unit of work. Every
// operation must name the scope's user.
type userScope struct {
	store  *Store
	userID uuid.UUID
}

var (
	_ subscription.Store = (*userScope)(nil)
	_ watch.Store        = (*userScope)(nil)
)

func (u *userScope) GetActive(_ context.Context, userID uuid.UUID) (subscription.Subscription, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[userID]
	if !ok || !sub.IsActive {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	return sub, nil
}

func (u *userScope) Insert(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.UserID]; ok && existing.IsActive {
		return subscription.Subscription{}, subscription.ErrConflict
	}
	now := s.now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.subscriptions[sub.UserID] = sub
	return sub, nil
}

func (u *userScope) Delete(_ context.Context, userID, id uuid.UUID) error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[userID]
	if !ok || !sub.IsActive || sub.ID != id {
		return subscription.ErrNotFound
	}
	delete(s.subscriptions, userID)
	return nil
}

func (u *userScope) UpdateUsage(_ context.Context, id uuid.UUID, update subscription.UsageUpdate) (subscription.Subscription, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[u.userID]
	if !ok || sub.ID != id {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	sub.TotalWatched = update.TotalWatched
	sub.LastWatchedMonth = update.LastWatchedMonth
	sub.LastWatchedYear = update.LastWatchedYear
	sub.UpdatedAt = s.now().UTC()
	s.subscriptions[u.userID] = sub
	return sub, nil
}

func (u *userScope) Upsert(_ context.Context, userID uuid.UUID, videoID int64, now time.Time) (watch.Event, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	byVideo, ok := s.events[userID]
	if !ok {
		byVideo = make(map[int64]watch.Event)
		s.events[userID] = byVideo
	}

	ev, ok := byVideo[videoID]
	if !ok {
		ev = watch.Event{UserID: userID, VideoID: videoID}
	}
	ev.Count++
	ev.WatchedAt = now
	byVideo[videoID] = ev
	return ev, nil
}

func (u *userScope) SumCounts(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, ev := range s.events[userID] {
		if !ev.WatchedAt.Before(since) {
			total += ev.Count
		}
	}
	return total, nil
}

func (u *userScope) DeleteBefore(_ context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, ev := range s.events[userID] {
		if ev.WatchedAt.Before(cutoff) {
			delete(s.events[userID], id)
			n++
		}
	}
	return n, nil
}

func (u *userScope) DeleteAll(_ context.Context, userID uuid.UUID) (int64, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.events[userID]))
	delete(s.events, userID)
	return n, nil
}

func (u *userScope) List(_ context.Context, userID uuid.UUID) ([]watch.Event, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]watch.Event, 0, len(s.events[userID]))
	for _, ev := range s.events[userID] {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].WatchedAt.Equal(events[j].WatchedAt) {
			return events[i].WatchedAt.After(events[j].WatchedAt)
		}
		return events[i].VideoID < events[j].VideoID
	})
	return events, nil
}
