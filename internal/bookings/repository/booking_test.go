package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "roombook/internal/bookings/errors"
	"roombook/pkg/client"
	"roombook/pkg/config"
	"roombook/pkg/logger"
)

// A malformed id is rejected before any round trip, so no server is needed.
func TestMongoRepository_MalformedIDIsNotFound(t *testing.T) {
	mongoClient, err := mongo.Connect(context.Background(),
		options.Client().ApplyURI("mongodb://127.0.0.1:1").SetServerSelectionTimeout(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mongoClient.Disconnect(context.Background()) })

	repo := NewMongoBookingRepository(&config.Config{
		MongoDatabaseName: "roombook_test",
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		Log:               logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
		Client:            &client.Client{Mongo: mongoClient},
	})
	ctx := context.Background()

	for _, id := range []string{"not-an-object-id", "123", "zzzzzzzzzzzzzzzzzzzzzzzz"} {
		_, err := repo.FindByID(ctx, id)
		assert.ErrorIs(t, err, bookingserrors.ErrNotFound, id)
		assert.ErrorIs(t, repo.Delete(ctx, id), bookingserrors.ErrNotFound, id)
	}
}
