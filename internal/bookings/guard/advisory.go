package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"roombook/internal/bookings/repository"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

const (
	releaseTimeout = 5 * time.Second
	maxLeaseMargin = 5 * time.Second
)

// ErrLockWaitExceeded is returned when another instance kept the slot key
// locked for longer than the configured maximum wait.
var ErrLockWaitExceeded = errors.New("timed out waiting for booking slot lock")

// AdvisoryLocker serializes a slot key across service instances through lock
// documents in the store. A held lock is retried with exponential backoff
// until it frees up, ctx ends, or maxWait elapses (zero waits for ctx only).
//
// Lock documents are not renewed. Once one expires another instance may take
// it over, so the held context returned by Lock is cancelled a margin before
// ExpiresAt and the locked section aborts while the lock is still ours.
type AdvisoryLocker struct {
	repo       repository.BookingLockRepository
	ttl        time.Duration
	maxWait    time.Duration
	log        *logger.Logger
	newBackOff func() backoff.BackOff
}

func NewAdvisoryLocker(repo repository.BookingLockRepository, ttl, maxWait time.Duration, log *logger.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{
		repo:    repo,
		ttl:     ttl,
		maxWait: maxWait,
		log:     log.Component("advisory_locker"),
		newBackOff: func() backoff.BackOff {
			return &backoff.ExponentialBackOff{
				InitialInterval:     10 * time.Millisecond,
				RandomizationFactor: 0.5,
				Multiplier:          1.5,
				MaxInterval:         250 * time.Millisecond,
			}
		},
	}
}

// leaseMargin is how long before ExpiresAt the held context ends. It absorbs
// commit latency and clock skew between instances.
func (l *AdvisoryLocker) leaseMargin() time.Duration {
	return min(l.ttl/5, maxLeaseMargin)
}

func LockID(key model.SlotKey) string {
	return fmt.Sprintf("booking_lock_%s_%s", key.Room, key.Date)
}

func (l *AdvisoryLocker) Lock(ctx context.Context, key model.SlotKey) (context.Context, func(), error) {
	lockID := LockID(key)
	owner := uuid.NewString()

	lock, err := backoff.Retry(ctx, func() (*model.BookingLock, error) {
		lock := &model.BookingLock{
			ID:        lockID,
			Owner:     owner,
			ExpiresAt: time.Now().UTC().Add(l.ttl),
		}
		created, err := l.repo.Create(ctx, lock)
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return created, nil
	},
		backoff.WithBackOff(l.newBackOff()),
		backoff.WithMaxElapsedTime(l.maxWait),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.log.Debug("Booking slot lock busy, retrying", "lock_id", lockID, "retry_in", next)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, nil, ErrLockWaitExceeded
		}
		return nil, nil, err
	}

	held, cancelHeld := context.WithDeadline(ctx, lock.ExpiresAt.Add(-l.leaseMargin()))

	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancelHeld()
			if errors.Is(held.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				l.log.Warn("Booking lock lease ran out before release", "lock_id", lockID, "ttl", l.ttl)
			}

			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := l.repo.Delete(releaseCtx, lockID, owner); err != nil {
				l.log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
			}
		})
	}, nil
}
