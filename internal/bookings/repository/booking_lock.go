package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"roombook/pkg/config"
	"roombook/pkg/model"
)

const LockCollectionName = "Booking_locks"

var ErrLockHeld = errors.New("booking lock is held by another owner")

// BookingLockRepository provides operations for advisory locks
type BookingLockRepository interface {
	Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error)
	Delete(ctx context.Context, lockID string, owner string) error
}

type mongoBookingLockRepository struct {
	collection *mongo.Collection
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Create inserts the lock document. An expired lock still in the collection
// (the TTL monitor runs about once a minute) is taken over; a live one yields
// ErrLockHeld.
func (r *mongoBookingLockRepository) Create(ctx context.Context, lock *model.BookingLock) (*model.BookingLock, error) {
	now := time.Now().UTC()
	lock.CreatedAt = now

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return lock, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to create booking lock: %w", err)
	}

	filter := bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": now}}
	result, err := r.collection.ReplaceOne(ctx, filter, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to take over expired booking lock: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrLockHeld
	}
	return lock, nil
}

// Delete removes an advisory lock, only if it is still owned by owner.
func (r *mongoBookingLockRepository) Delete(ctx context.Context, lockID string, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete booking lock: %w", err)
	}
	return nil
}
