package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/model"
)

func newBooking(room string, date model.Date, fromHour, toHour int) *model.Booking {
	return &model.Booking{
		Room:           room,
		RequesterEmail: "employee@example.com",
		Date:           date,
		TimeFrom:       model.NewTimeOfDay(fromHour, 0),
		TimeTo:         model.NewTimeOfDay(toHour, 0),
	}
}

func TestMemoryRepository_CreateAssignsUniqueIDs(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	first := newBooking("A", "2026-10-20", 9, 10)
	second := newBooking("A", "2026-10-20", 10, 11)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestMemoryRepository_FindByRoomAndDate(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newBooking("A", "2026-10-20", 14, 15)))
	require.NoError(t, repo.Create(ctx, newBooking("A", "2026-10-20", 9, 10)))
	require.NoError(t, repo.Create(ctx, newBooking("A", "2026-10-21", 9, 10)))
	require.NoError(t, repo.Create(ctx, newBooking("B", "2026-10-20", 9, 10)))

	found, err := repo.FindByRoomAndDate(ctx, "A", "2026-10-20")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, model.NewTimeOfDay(9, 0), found[0].TimeFrom)
	assert.Equal(t, model.NewTimeOfDay(14, 0), found[1].TimeFrom)

	none, err := repo.FindByRoomAndDate(ctx, "C", "2026-10-20")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	b := newBooking("A", "2026-10-20", 9, 10)
	require.NoError(t, repo.Create(ctx, b))

	b.Room = "mutated after insert"
	found, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", found.Room)

	found.Room = "mutated after read"
	again, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", again.Room)
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	b := newBooking("A", "2026-10-20", 9, 10)
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.Delete(ctx, b.ID))

	_, err := repo.FindByID(ctx, b.ID)
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound))

	err = repo.Delete(ctx, b.ID)
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound))

	remaining, err := repo.FindByRoomAndDate(ctx, "A", "2026-10-20")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	replacement := newBooking("A", "2026-10-20", 9, 10)
	require.NoError(t, repo.Create(ctx, replacement))
	assert.NotEqual(t, b.ID, replacement.ID)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Create(ctx, newBooking("A", "2026-10-20", 9, 10))
	assert.ErrorIs(t, err, context.Canceled)

	err = repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		t.Fatal("callback must not run on a canceled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
