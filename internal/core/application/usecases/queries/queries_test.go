package queries_test

import (
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGetCourierHistoryQuery(t *testing.T) {
	t.Run("should keep the arguments", func(t *testing.T) {
		since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		query, err := queries.NewGetCourierHistoryQuery(kernel.MustIDFromString("rider-a"), since, 20)

		require.NoError(t, err)
		require.NoError(t, query.Validate())
		assert.Equal(t, "rider-a", query.CourierID().String())
		assert.Equal(t, since, query.Since())
		assert.Equal(t, uint64(20), query.Limit())
	})

	t.Run("should reject an empty courier id", func(t *testing.T) {
		_, err := queries.NewGetCourierHistoryQuery(kernel.ID{}, time.Now(), 0)

		require.Error(t, err)
	})

	t.Run("should fail validation when not constructed", func(t *testing.T) {
		var query queries.GetCourierHistoryQuery

		require.ErrorIs(t, query.Validate(), queries.ErrGetCourierHistoryQueryIsNotConstructed)
	})
}

func TestGetEarningsQuery_WindowStart(t *testing.T) {
	courierID := kernel.MustIDFromString("rider-a")

	t.Run("should start at the month when the week began earlier", func(t *testing.T) {
		// Sunday 2026-03-01 belongs to the ISO week starting Monday 2026-02-23.
		query, err := queries.NewGetEarningsQuery(courierID, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), query.WindowStart())
	})

	t.Run("should start at the month when it began after the week", func(t *testing.T) {
		query, err := queries.NewGetEarningsQuery(courierID, time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), query.WindowStart())
	})

	t.Run("should use the location of now", func(t *testing.T) {
		lima := time.FixedZone("PET", -5*60*60)
		query, err := queries.NewGetEarningsQuery(courierID, time.Date(2026, 3, 11, 1, 0, 0, 0, lima))
		require.NoError(t, err)

		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, lima), query.WindowStart())
	})

	t.Run("should default now when zero", func(t *testing.T) {
		query, err := queries.NewGetEarningsQuery(courierID, time.Time{})
		require.NoError(t, err)

		assert.False(t, query.Now().IsZero())
	})

	t.Run("should fail validation when not constructed", func(t *testing.T) {
		var query queries.GetEarningsQuery

		require.ErrorIs(t, query.Validate(), queries.ErrGetEarningsQueryIsNotConstructed)
	})
}
