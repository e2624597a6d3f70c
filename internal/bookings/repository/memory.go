package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	bookingserrors "roombook/internal/bookings/errors"
	mongotx "roombook/pkg/db/mongo"
	"roombook/pkg/model"
)

type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
	bySlot   map[model.SlotKey]map[string]struct{}
	now      func() time.Time
}

// NewMemoryBookingRepository keeps bookings in process memory. Every method is
// individually atomic; ExecuteTransaction adds no isolation of its own, so
// check-then-insert sequences must run under the booking guard's key lock.
func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]*model.Booking),
		bySlot:   make(map[model.SlotKey]map[string]struct{}),
		now:      time.Now,
	}
}

func (r *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	booking.ID = uuid.NewString()
	booking.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	stored := *booking
	r.bookings[stored.ID] = &stored

	key := stored.SlotKey()
	if r.bySlot[key] == nil {
		r.bySlot[key] = make(map[string]struct{})
	}
	r.bySlot[key][stored.ID] = struct{}{}
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	found := *b
	return &found, nil
}

func (r *memoryBookingRepository) FindByRoomAndDate(ctx context.Context, room string, date model.Date) ([]*model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySlot[model.SlotKey{Room: room, Date: date}]
	bookings := make([]*model.Booking, 0, len(ids))
	for id := range ids {
		found := *r.bookings[id]
		bookings = append(bookings, &found)
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].TimeFrom < bookings[j].TimeFrom
	})
	return bookings, nil
}

func (r *memoryBookingRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}

	key := b.SlotKey()
	delete(r.bySlot[key], id)
	if len(r.bySlot[key]) == 0 {
		delete(r.bySlot, key)
	}
	delete(r.bookings, id)
	return nil
}

func (r *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
