package events

import (
	"context"
	"time"

	"roombook/pkg/kafka"
	"roombook/pkg/logger"
	"roombook/pkg/middleware"
	"roombook/pkg/model"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"

	SchemaVersion = "1"

	publishTimeout = 5 * time.Second
)

// Publisher announces committed booking changes. Delivery is best effort:
// failures are logged and never undo or fail the change itself.
type Publisher interface {
	BookingCreated(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, booking *model.Booking)
}

// MessagePublisher is the part of kafka.Producer the publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type BookingEvent struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Booking    *model.Booking `json:"booking"`
}

type kafkaPublisher struct {
	producer MessagePublisher
	source   string
	now      func() time.Time
	log      *logger.Logger
}

func NewKafkaPublisher(producer MessagePublisher, source string, now func() time.Time, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		now:      now,
		log:      log.Component("booking_events"),
	}
}

func (p *kafkaPublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCreated, booking)
}

func (p *kafkaPublisher) BookingCancelled(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCancelled, booking)
}

// publish keys events by slot so consumers see one room's day in order.
func (p *kafkaPublisher) publish(ctx context.Context, eventType string, booking *model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	occurredAt := p.now().UTC()
	msg := kafka.NewMessage().
		WithKey(booking.SlotKey().String()).
		WithValue(BookingEvent{Type: eventType, OccurredAt: occurredAt, Booking: booking}).
		WithEventType(eventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithTimestamp(occurredAt).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

type noopPublisher struct{}

// NewNoopPublisher is used when events are disabled.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) BookingCreated(context.Context, *model.Booking)   {}
func (noopPublisher) BookingCancelled(context.Context, *model.Booking) {}
