package validator

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

var now = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

func newValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}))
}

func validBooking() *model.Booking {
	return &model.Booking{
		Room:           "Boardroom",
		RequesterEmail: "employee@example.com",
		Date:           "2026-10-19",
		TimeFrom:       model.NewTimeOfDay(9, 0),
		TimeTo:         model.NewTimeOfDay(10, 0),
	}
}

func TestValidate_Duration(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		from    model.TimeOfDay
		to      model.TimeOfDay
		wantErr error
	}{
		{"half hour", model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 30), bookingserrors.ErrInvalidDuration},
		{"one hour", model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0), nil},
		{"two and a half hours", model.NewTimeOfDay(9, 0), model.NewTimeOfDay(11, 30), bookingserrors.ErrInvalidDuration},
		{"ninety minutes off the hour", model.NewTimeOfDay(9, 30), model.NewTimeOfDay(11, 0), bookingserrors.ErrInvalidDuration},
		{"three hours off the hour", model.NewTimeOfDay(9, 15), model.NewTimeOfDay(12, 15), nil},
		{"zero length", model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 0), bookingserrors.ErrInvalidDuration},
		{"end before start", model.NewTimeOfDay(11, 0), model.NewTimeOfDay(9, 0), bookingserrors.ErrInvalidDuration},
		{"until midnight", model.NewTimeOfDay(23, 0), model.EndOfDay, nil},
		{"whole day", 0, model.EndOfDay, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			b.TimeFrom = tt.from
			b.TimeTo = tt.to

			err := v.Validate(b, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidate_PastDate(t *testing.T) {
	v := newValidator()

	yesterday := validBooking()
	yesterday.Date = "2026-10-17"
	assert.ErrorIs(t, v.Validate(yesterday, now), bookingserrors.ErrPastDate)

	// past date wins over an invalid interval
	yesterday.TimeTo = model.NewTimeOfDay(9, 30)
	assert.ErrorIs(t, v.Validate(yesterday, now), bookingserrors.ErrPastDate)

	// today is bookable even for hours already gone
	today := validBooking()
	today.Date = "2026-10-18"
	assert.NoError(t, v.Validate(today, now))
}

func TestValidate_PastDateFollowsClockZone(t *testing.T) {
	v := newValidator()
	b := validBooking()
	b.Date = "2026-10-18"

	tokyo := time.FixedZone("UTC+9", 9*60*60)
	lateEvening := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC).In(tokyo)

	assert.ErrorIs(t, v.Validate(b, lateEvening), bookingserrors.ErrPastDate)
}

func TestValidate_StructuralErrors(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name      string
		mutate    func(b *model.Booking)
		wantField string
	}{
		{"missing room", func(b *model.Booking) { b.Room = "" }, "Room"},
		{"invalid email", func(b *model.Booking) { b.RequesterEmail = "not-an-email" }, "RequesterEmail"},
		{"missing email", func(b *model.Booking) { b.RequesterEmail = "" }, "RequesterEmail"},
		{"malformed date", func(b *model.Booking) { b.Date = "19/10/2026" }, "Date"},
		{"end after midnight", func(b *model.Booking) { b.TimeTo = model.EndOfDay + 60 }, "TimeTo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			tt.mutate(b)

			err := v.Validate(b, now)
			require.Error(t, err)

			var validationErrs ValidationErrors
			require.True(t, errors.As(err, &validationErrs), "got %T", err)
			require.NotEmpty(t, validationErrs)
			assert.Equal(t, tt.wantField, validationErrs[0].Field)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "Room", Message: "Room is required"},
		{Field: "Date", Message: "Date must be a date in YYYY-MM-DD format"},
	}
	assert.Equal(t,
		"validation failed: 2 error(s): [Room: Room is required; Date: Date must be a date in YYYY-MM-DD format]",
		errs.Error())
	assert.Equal(t, "", ValidationErrors{}.Error())
}
