package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "bookings"}

	msg := NewMessage().
		WithKey("A|2026-10-20").
		WithValue(map[string]string{"id": "b-1"}).
		WithEventType("booking.created").
		Build()

	require.NoError(t, p.Publish(context.Background(), msg))
	require.Len(t, writer.written, 1)
	assert.Equal(t, "A|2026-10-20", string(writer.written[0].Key))
	assert.JSONEq(t, `{"id":"b-1"}`, string(writer.written[0].Value))
	assert.Equal(t, "booking.created", headerValue(writer.written[0], HeaderEventType))
	assert.NotEmpty(t, headerValue(writer.written[0], HeaderEventID))
}

func TestProducer_RejectsInvalidMessages(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, topic: "bookings"}

	err := p.Publish(context.Background(), NewMessage().WithValue("x").Build())
	assert.ErrorIs(t, err, ErrEmptyKey)

	err = p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(make(chan int)).Build())
	assert.ErrorIs(t, err, ErrEmptyValue)
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, topic: "bookings"}
	var order []string
	for _, name := range []string{"first", "second"} {
		p.Use(func(ctx context.Context, msg Message, next func(ctx context.Context, msg Message) error) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	require.NoError(t, p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(1).Build()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestProducer_FailedPublishGoesToDLQ(t *testing.T) {
	brokerErr := errors.New("broker unavailable")
	dlq := &fakeWriter{}
	p := &Producer{
		writer:    &fakeWriter{err: brokerErr},
		dlqWriter: dlq,
		topic:     "bookings",
		dlqTopic:  "bookings.dlq",
	}

	msg := NewMessage().WithKey("k").WithValue(1).Build()
	err := p.Publish(context.Background(), msg)
	assert.ErrorIs(t, err, brokerErr)

	require.Len(t, dlq.written, 1)
	assert.Equal(t, "bookings", headerValue(dlq.written[0], HeaderOriginalTopic))
	assert.Equal(t, "broker unavailable", headerValue(dlq.written[0], HeaderDLQError))
	assert.Empty(t, msg.Headers[HeaderDLQError])
}

func TestProducer_Close(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "bookings"}

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, writer.closed)

	err := p.Publish(context.Background(), NewMessage().WithKey("k").WithValue(1).Build())
	assert.ErrorIs(t, err, ErrProducerClosed)
}
