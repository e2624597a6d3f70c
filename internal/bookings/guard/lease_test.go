package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/internal/bookings/repository"
	"roombook/pkg/model"
)

// sharedLockStore behaves like the lock collection: a live lock blocks other
// owners, an expired one is taken over.
type sharedLockStore struct {
	mu    sync.Mutex
	locks map[string]model.BookingLock
}

func newSharedLockStore() *sharedLockStore {
	return &sharedLockStore{locks: make(map[string]model.BookingLock)}
}

func (s *sharedLockStore) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.locks[lock.ID]; ok && current.ExpiresAt.After(time.Now().UTC()) {
		return nil, repository.ErrLockHeld
	}
	s.locks[lock.ID] = *lock
	return lock, nil
}

func (s *sharedLockStore) Delete(ctx context.Context, lockID string, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.locks[lockID]; ok && current.Owner == owner {
		delete(s.locks, lockID)
	}
	return nil
}

func (s *sharedLockStore) has(lockID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locks[lockID]
	return ok
}

// slowBookingRepository delays the slot read, like a store under load.
type slowBookingRepository struct {
	repository.BookingRepository
	delay time.Duration
}

func (r *slowBookingRepository) FindByRoomAndDate(ctx context.Context, room string, date model.Date) ([]*model.Booking, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.BookingRepository.FindByRoomAndDate(ctx, room, date)
}

func newInstanceLocker(locks repository.BookingLockRepository, ttl time.Duration) Locker {
	advisory := NewAdvisoryLocker(locks, ttl, 0, testLogger())
	advisory.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return Chain(NewKeyedMutex(), advisory)
}

func TestGuard_LeaseExpiryAbortsReservation(t *testing.T) {
	store := repository.NewMemoryBookingRepository()
	locks := newSharedLockStore()
	slot := model.SlotKey{Room: "A", Date: "2026-10-20"}

	// two service instances sharing one store, each with its own process lock
	slowInstance := New(&slowBookingRepository{BookingRepository: store, delay: 150 * time.Millisecond},
		newInstanceLocker(locks, 50*time.Millisecond), testLogger())
	fastInstance := New(store, newInstanceLocker(locks, 50*time.Millisecond), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	slowErr := make(chan error, 1)
	go func() {
		_, err := slowInstance.Reserve(ctx, booking("A", slot.Date, hours(9), hours(10)))
		slowErr <- err
	}()

	require.Eventually(t, func() bool { return locks.has(LockID(slot)) }, time.Second, time.Millisecond)

	reserved, err := fastInstance.Reserve(ctx, booking("A", slot.Date, hours(9), hours(10)))
	require.NoError(t, err)

	err = <-slowErr
	assert.ErrorIs(t, err, ErrLockLeaseExpired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, ctx.Err())

	stored, err := store.FindByRoomAndDate(context.Background(), slot.Room, slot.Date)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, reserved.ID, stored[0].ID)
}

func TestGuard_LeaseExpiryNotReportedForCallerCancel(t *testing.T) {
	store := &slowBookingRepository{BookingRepository: repository.NewMemoryBookingRepository(), delay: time.Second}
	g := New(store, newInstanceLocker(newSharedLockStore(), 10*time.Second), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Reserve(ctx, booking("A", "2026-10-20", hours(9), hours(10)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrLockLeaseExpired)
}
