package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/internal/bookings/events"
	"roombook/internal/bookings/guard"
	"roombook/internal/bookings/repository"
	"roombook/internal/bookings/validator"
	"roombook/pkg/clock"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

const (
	msgInvalidDuration = "Booking duration must be at least 1 hour or a multiple of 1 hour."
	msgPastDate        = "Cannot book for past dates."
	msgPastBooking     = "Cannot cancel past bookings."
)

type BookingService interface {
	List(ctx context.Context, room string, date model.Date) ([]*model.Booking, error)
	Create(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	Cancel(ctx context.Context, id string) error
}

type bookingService struct {
	repo      repository.BookingRepository
	guard     guard.Guard
	validator *validator.BookingValidator
	events    events.Publisher
	clock     clock.Clock
	log       *logger.Logger
}

func NewBookingService(
	repo repository.BookingRepository,
	guard guard.Guard,
	validator *validator.BookingValidator,
	events events.Publisher,
	clock clock.Clock,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		repo:      repo,
		guard:     guard,
		validator: validator,
		events:    events,
		clock:     clock,
		log:       log,
	}
}

// List returns the bookings of room on date ordered by start time. An empty
// result is reported as not found.
func (s *bookingService) List(ctx context.Context, room string, date model.Date) ([]*model.Booking, error) {
	room = sanitizer.SanitizeRoom(room)
	if room == "" {
		return nil, apperrors.InvalidInput("Room is required")
	}
	if _, err := model.ParseDate(string(date)); err != nil {
		return nil, apperrors.InvalidInput("Date must be in YYYY-MM-DD format")
	}

	bookings, err := s.repo.FindByRoomAndDate(ctx, room, date)
	if err != nil {
		s.log.Error("Failed to list bookings", "room", room, "date", date, "error", err)
		return nil, s.translateError(err, "")
	}

	if len(bookings) == 0 {
		s.log.Debug("No bookings found", "room", room, "date", date)
		return nil, apperrors.NotFound("Bookings").
			WithDetails(map[string]any{"room": room, "date": date}).
			WithCause(bookingserrors.ErrNotFound).
			WithMessage(fmt.Sprintf("No bookings found for room: %s on date: %s", room, date))
	}

	s.log.Debug("Bookings listed", "room", room, "date", date, "count", len(bookings))
	return bookings, nil
}

// Create validates the proposal against the clock and stores it unless it
// overlaps an existing booking of the same room and date.
func (s *bookingService) Create(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	proposed := *booking
	proposed.ID = ""
	proposed.CreatedAt = time.Time{}
	sanitizer.SanitizeBooking(&proposed)

	if err := s.validator.Validate(&proposed, s.clock.Now()); err != nil {
		s.log.Warn("Booking validation failed",
			"room", proposed.Room,
			"date", proposed.Date,
			"time_from", proposed.TimeFrom.String(),
			"time_to", proposed.TimeTo.String(),
			"error", err,
		)
		return nil, s.translateError(err, "")
	}

	created, err := s.guard.Reserve(ctx, &proposed)
	if err != nil {
		var conflict *bookingserrors.ConflictError
		if errors.As(err, &conflict) {
			s.log.Warn("Booking conflict detected",
				"room", proposed.Room,
				"date", proposed.Date,
				"time_from", proposed.TimeFrom.String(),
				"time_to", proposed.TimeTo.String(),
				"conflicts", len(conflict.Conflicts),
			)
		} else {
			s.log.Error("Failed to create booking", "room", proposed.Room, "date", proposed.Date, "error", err)
		}
		return nil, s.translateError(err, "")
	}

	s.log.Info("Booking created successfully",
		"id", created.ID,
		"room", created.Room,
		"date", created.Date,
		"time_from", created.TimeFrom.String(),
		"time_to", created.TimeTo.String(),
	)
	s.events.BookingCreated(ctx, created)
	return created, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateError(err, id)
	}
	return booking, nil
}

// Cancel deletes a booking whose date is today or later. It does not take the
// slot lock; removing a booking can only free time.
func (s *bookingService) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			s.log.Error("Failed to load booking for cancellation", "id", id, "error", err)
		}
		return s.translateError(err, id)
	}

	if booking.Date.Before(model.DateOf(s.clock.Now())) {
		s.log.Warn("Attempt to cancel a past booking", "id", id, "date", booking.Date)
		return s.translateError(bookingserrors.ErrPastBooking, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, bookingserrors.ErrNotFound) {
			s.log.Error("Failed to cancel booking", "id", id, "error", err)
		}
		return s.translateError(err, id)
	}

	s.log.Info("Booking cancelled successfully", "id", id, "room", booking.Room, "date", booking.Date)
	s.events.BookingCancelled(ctx, booking)
	return nil
}

// translateError maps domain and infrastructure failures to AppErrors,
// keeping the original error as the cause.
func (s *bookingService) translateError(err error, id string) error {
	var validationErrs validator.ValidationErrors
	var conflict *bookingserrors.ConflictError

	switch {
	case errors.As(err, &validationErrs):
		return apperrors.Validation("Booking validation failed", map[string]any{"errors": validationErrs}).WithCause(err)
	case errors.Is(err, bookingserrors.ErrInvalidDuration):
		return apperrors.Validation(msgInvalidDuration, nil).WithCause(err)
	case errors.Is(err, bookingserrors.ErrPastDate):
		return apperrors.Validation(msgPastDate, nil).WithCause(err)
	case errors.As(err, &conflict):
		return apperrors.Conflict(conflict.Error()).
			WithDetails(map[string]any{"conflicts": conflictDetails(conflict.Conflicts)}).
			WithCause(err)
	case errors.Is(err, bookingserrors.ErrPastBooking):
		return apperrors.Conflict(msgPastBooking).WithCause(err)
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id).WithCause(err)
	case errors.Is(err, guard.ErrLockLeaseExpired), errors.Is(err, guard.ErrLockWaitExceeded):
		return apperrors.Unavailable("Booking slot is busy, please retry").WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Request was cancelled before it completed").WithCause(err)
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Failed to process booking", err)
	}
}

func conflictDetails(conflicts []*model.Booking) []map[string]string {
	details := make([]map[string]string, 0, len(conflicts))
	for _, b := range conflicts {
		details = append(details, map[string]string{
			"id":        b.ID,
			"time_from": b.TimeFrom.String(),
			"time_to":   b.TimeTo.String(),
		})
	}
	return details
}
