package errors

import (
	"errors"
	"fmt"
	"strings"

	"roombook/pkg/model"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidDuration = errors.New("booking duration must be at least 1 hour or a multiple of 1 hour")

	ErrPastDate = errors.New("cannot book for past dates")

	ErrPastBooking = errors.New("cannot cancel past bookings")

	ErrTimeConflict = errors.New("booking time conflicts with existing booking")
)

// ConflictError carries every live booking that overlaps a proposed one.
type ConflictError struct {
	Conflicts []*model.Booking
}

func (e *ConflictError) Error() string {
	details := make([]string, 0, len(e.Conflicts))
	for _, b := range e.Conflicts {
		details = append(details, fmt.Sprintf("Existing booking from %s to %s", b.TimeFrom, b.TimeTo))
	}
	return fmt.Sprintf("Slot already booked for the given time. Conflicts: %s", strings.Join(details, "; "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrTimeConflict
}
