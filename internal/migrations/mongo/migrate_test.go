package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"roombook/internal/bookings/repository"
)

func TestCollections_CoverBookingsAndLocks(t *testing.T) {
	defs := Collections()
	require.Contains(t, defs, repository.CollectionName)
	require.Contains(t, defs, repository.LockCollectionName)

	for name, def := range defs {
		assert.NotEmpty(t, def.Indexes, name)
		assert.Contains(t, def.Validator, "$jsonSchema", name)
	}
}

func TestBookingsIndex_MatchesListQuery(t *testing.T) {
	require.Len(t, BookingsIndexes, 1)
	keys, ok := BookingsIndexes[0].Keys.(bson.D)
	require.True(t, ok)

	var names []string
	for _, e := range keys {
		names = append(names, e.Key)
	}
	assert.Equal(t, []string{"room", "date", "time_from"}, names)
}

func TestBookingLocksIndex_IsTTL(t *testing.T) {
	require.Len(t, BookingLocksIndexes, 1)
	opts := BookingLocksIndexes[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *opts.ExpireAfterSeconds)
}
