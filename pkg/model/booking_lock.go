package model

import "time"

// BookingLock is an advisory lock document guarding one (room, date) slot key
// across service instances. ExpiresAt backs a TTL index so an abandoned lock
// is eventually reclaimed.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
