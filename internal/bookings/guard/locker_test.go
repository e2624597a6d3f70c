package guard

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/internal/bookings/repository"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

var (
	slotA = model.SlotKey{Room: "A", Date: "2026-10-20"}
	slotB = model.SlotKey{Room: "B", Date: "2026-10-20"}
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func TestKeyedMutex_MutualExclusionPerKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, unlock, err := m.Lock(ctx, slotA)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	_, unlockA, err := m.Lock(ctx, slotA)
	require.NoError(t, err)
	defer unlockA()

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, unlockB, err := m.Lock(ctxB, slotB)
	require.NoError(t, err)
	unlockB()

	sameRoomOtherDay := model.SlotKey{Room: "A", Date: "2026-10-21"}
	_, unlockC, err := m.Lock(ctxB, sameRoomOtherDay)
	require.NoError(t, err)
	unlockC()
}

func TestKeyedMutex_WaitAbortsOnContext(t *testing.T) {
	m := NewKeyedMutex()

	_, unlock, err := m.Lock(context.Background(), slotA)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = m.Lock(ctx, slotA)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.Len())

	unlock()
	assert.Equal(t, 0, m.Len())

	_, unlock, err = m.Lock(context.Background(), slotA)
	require.NoError(t, err)
	unlock()
}

func TestKeyedMutex_CanceledBeforeLock(t *testing.T) {
	m := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.Lock(ctx, slotA)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	m := NewKeyedMutex()

	_, unlock, err := m.Lock(context.Background(), slotA)
	require.NoError(t, err)
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, unlock, err = m.Lock(ctx, slotA)
	require.NoError(t, err)
	unlock()
}

type recordingLocker struct {
	name   string
	err    error
	events *[]string
}

func (l recordingLocker) Lock(ctx context.Context, key model.SlotKey) (context.Context, func(), error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	*l.events = append(*l.events, "lock "+l.name)
	return ctx, func() { *l.events = append(*l.events, "unlock "+l.name) }, nil
}

func TestChain_ReleasesInReverseOrder(t *testing.T) {
	var events []string
	locker := Chain(
		recordingLocker{name: "local", events: &events},
		recordingLocker{name: "advisory", events: &events},
	)

	_, unlock, err := locker.Lock(context.Background(), slotA)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Equal(t, []string{"lock local", "lock advisory", "unlock advisory", "unlock local"}, events)
}

func TestChain_ReleasesAcquiredOnFailure(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	locker := Chain(
		recordingLocker{name: "local", events: &events},
		recordingLocker{name: "advisory", err: boom, events: &events},
	)

	_, _, err := locker.Lock(context.Background(), slotA)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"lock local", "unlock local"}, events)
}

type deadlineLocker struct {
	deadline time.Time
}

func (l deadlineLocker) Lock(ctx context.Context, key model.SlotKey) (context.Context, func(), error) {
	held, cancel := context.WithDeadline(ctx, l.deadline)
	return held, cancel, nil
}

func TestChain_HeldContextEndsWithEarliestLease(t *testing.T) {
	soon := time.Now().Add(time.Minute)
	later := soon.Add(time.Hour)

	locker := Chain(NewKeyedMutex(), deadlineLocker{deadline: later}, deadlineLocker{deadline: soon})
	held, unlock, err := locker.Lock(context.Background(), slotA)
	require.NoError(t, err)

	deadline, ok := held.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.Equal(soon))

	unlock()
	assert.ErrorIs(t, held.Err(), context.Canceled)
}

// mockLockRepository is a mock implementation of BookingLockRepository
type mockLockRepository struct {
	createFunc func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error)
	deleteFunc func(ctx context.Context, lockID string, owner string) error
}

func (m *mockLockRepository) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockLockRepository) Delete(ctx context.Context, lockID string, owner string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, lockID, owner)
	}
	return nil
}

func newTestAdvisoryLocker(repo repository.BookingLockRepository, maxWait time.Duration) *AdvisoryLocker {
	l := NewAdvisoryLocker(repo, 10*time.Second, maxWait, testLogger())
	l.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return l
}

func TestAdvisoryLocker_RetriesUntilFree(t *testing.T) {
	var attempts int32
	var deleted []string
	repo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return nil, repository.ErrLockHeld
			}
			return lock, nil
		},
		deleteFunc: func(ctx context.Context, lockID string, owner string) error {
			assert.NotEmpty(t, owner)
			deleted = append(deleted, lockID)
			return nil
		},
	}

	locker := newTestAdvisoryLocker(repo, time.Second)
	_, unlock, err := locker.Lock(context.Background(), slotA)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	unlock()
	assert.Equal(t, []string{"booking_lock_A_2026-10-20"}, deleted)
}

func TestAdvisoryLocker_MaxWaitExceeded(t *testing.T) {
	repo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
			return nil, repository.ErrLockHeld
		},
	}

	locker := newTestAdvisoryLocker(repo, 20*time.Millisecond)
	_, _, err := locker.Lock(context.Background(), slotA)
	assert.ErrorIs(t, err, ErrLockWaitExceeded)
}

func TestAdvisoryLocker_ContextCanceledWhileWaiting(t *testing.T) {
	repo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
			return nil, repository.ErrLockHeld
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	locker := newTestAdvisoryLocker(repo, 0)
	_, _, err := locker.Lock(ctx, slotA)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdvisoryLocker_StoreErrorIsNotRetried(t *testing.T) {
	var attempts int32
	storeErr := errors.New("connection refused")
	repo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
			atomic.AddInt32(&attempts, 1)
			return nil, storeErr
		},
	}

	locker := newTestAdvisoryLocker(repo, time.Second)
	_, _, err := locker.Lock(context.Background(), slotA)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestAdvisoryLocker_LockDocument(t *testing.T) {
	var got *model.BookingLock
	repo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
			got = lock
			return lock, nil
		},
	}

	before := time.Now().UTC()
	locker := newTestAdvisoryLocker(repo, time.Second)
	_, unlock, err := locker.Lock(context.Background(), slotA)
	require.NoError(t, err)
	defer unlock()

	require.NotNil(t, got)
	assert.Equal(t, "booking_lock_A_2026-10-20", got.ID)
	assert.NotEmpty(t, got.Owner)
	assert.True(t, got.ExpiresAt.After(before.Add(9*time.Second)))
}

func TestAdvisoryLocker_HeldContextEndsBeforeExpiry(t *testing.T) {
	var got *model.BookingLock
	repo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
			got = lock
			return lock, nil
		},
	}

	locker := newTestAdvisoryLocker(repo, time.Second)
	held, unlock, err := locker.Lock(context.Background(), slotA)
	require.NoError(t, err)

	deadline, ok := held.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.Before(got.ExpiresAt), "held until %s, lock expires %s", deadline, got.ExpiresAt)
	assert.Equal(t, 2*time.Second, got.ExpiresAt.Sub(deadline))

	unlock()
	assert.ErrorIs(t, held.Err(), context.Canceled)
}

func TestAdvisoryLocker_ShortTTLHeldContextExpires(t *testing.T) {
	locker := NewAdvisoryLocker(&mockLockRepository{}, 50*time.Millisecond, 0, testLogger())

	held, unlock, err := locker.Lock(context.Background(), slotA)
	require.NoError(t, err)
	defer unlock()

	select {
	case <-held.Done():
		assert.ErrorIs(t, held.Err(), context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("held context outlived the lock")
	}
}
