package model

import (
	"time"
)

type Booking struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty"`
	Room           string    `json:"room" bson:"room" validate:"required,min=1,max=100"`
	RequesterEmail string    `json:"requester_email" bson:"requester_email" validate:"required,email,max=254"`
	Date           Date      `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	TimeFrom       TimeOfDay `json:"time_from" bson:"time_from" validate:"min=0,max=1439"`
	TimeTo         TimeOfDay `json:"time_to" bson:"time_to" validate:"min=0,max=1440"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Duration is the length of the booked interval.
func (b *Booking) Duration() time.Duration {
	return time.Duration(b.TimeTo-b.TimeFrom) * time.Minute
}

func (b *Booking) Overlaps(other *Booking) bool {
	return Overlaps(b.TimeFrom, b.TimeTo, other.TimeFrom, other.TimeTo)
}

// SlotKey identifies the (room, date) pair that bookings compete for.
func (b *Booking) SlotKey() SlotKey {
	return SlotKey{Room: b.Room, Date: b.Date}
}

type SlotKey struct {
	Room string
	Date Date
}

func (k SlotKey) String() string {
	return k.Room + "|" + string(k.Date)
}
