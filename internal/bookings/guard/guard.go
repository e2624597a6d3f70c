package guard

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/repository"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

// ErrLockLeaseExpired means the slot lock ran out while the reservation was
// still in progress. Nothing was stored and the request can be retried.
var ErrLockLeaseExpired = errors.New("booking slot lock expired before the reservation completed")

// Guard makes the conflict check and the insert of a booking one atomic step
// with respect to every other reservation of the same room and date.
type Guard interface {
	Reserve(ctx context.Context, proposed *model.Booking) (*model.Booking, error)
}

type bookingGuard struct {
	repo   repository.BookingRepository
	locker Locker
	log    *logger.Logger
}

func New(repo repository.BookingRepository, locker Locker, log *logger.Logger) Guard {
	return &bookingGuard{
		repo:   repo,
		locker: locker,
		log:    log.Component("booking_guard"),
	}
}

// Reserve persists proposed if no stored booking for its slot overlaps it.
// Otherwise it returns a *ConflictError listing every overlapping booking and
// stores nothing. Requests for different slots never wait on each other.
func (g *bookingGuard) Reserve(ctx context.Context, proposed *model.Booking) (*model.Booking, error) {
	key := proposed.SlotKey()

	held, unlock, err := g.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", key, err)
	}
	defer unlock()

	// The transaction runs on the held context so it aborts before a lock
	// that expires can be taken over by another instance.
	err = g.repo.ExecuteTransaction(held, func(txCtx context.Context) error {
		existing, err := g.repo.FindByRoomAndDate(txCtx, proposed.Room, proposed.Date)
		if err != nil {
			return fmt.Errorf("failed to load bookings for %s: %w", key, err)
		}

		if conflicts := FindConflicts(existing, proposed); len(conflicts) > 0 {
			return &bookingserrors.ConflictError{Conflicts: conflicts}
		}

		return g.repo.Create(txCtx, proposed)
	})
	if err != nil {
		if held.Err() != nil && ctx.Err() == nil {
			g.log.Warn("Booking slot lock expired during reservation", "slot", key.String(), "error", err)
			return nil, fmt.Errorf("%w: %w", ErrLockLeaseExpired, err)
		}
		return nil, err
	}

	g.log.Debug("Booking reserved",
		"booking_id", proposed.ID,
		"slot", key.String(),
		"time_from", proposed.TimeFrom.String(),
		"time_to", proposed.TimeTo.String(),
	)
	return proposed, nil
}

// FindConflicts returns the bookings in existing that overlap proposed, in
// their original order.
func FindConflicts(existing []*model.Booking, proposed *model.Booking) []*model.Booking {
	var conflicts []*model.Booking
	for _, b := range existing {
		if b.Overlaps(proposed) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}
