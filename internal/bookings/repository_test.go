package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database/dbtest"
)

func seedEvent(t *testing.T, pool *pgxpool.Pool, status models.EventStatus, capacity int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var orgID, eventID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO organizations (name, slug, created_by) VALUES ('Acme', $1, $2) RETURNING id`,
		"acme-"+uuid.NewString()[:8], uuid.New()).Scan(&orgID))
	start := time.Now().Add(48 * time.Hour)
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO events (organization_id, slug, title, start_date, end_date, total_capacity, available_capacity,
			ticket_price_cents, is_free, status, created_by)
		VALUES ($1, 'launch', 'Launch', $2, $3, $4, $4, 1200, false, $5, $6) RETURNING id`,
		orgID, start, start.Add(2*time.Hour), capacity, status, uuid.New()).Scan(&eventID))
	return eventID
}

func availableCapacity(t *testing.T, pool *pgxpool.Pool, eventID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT available_capacity FROM events WHERE id = $1`, eventID).Scan(&n))
	return n
}

func TestRepository(t *testing.T) {
	pool := dbtest.NewPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	t.Run("create decrements capacity and prices the booking", func(t *testing.T) {
		eventID := seedEvent(t, pool, models.EventStatusPublished, 5)
		b, e, err := repo.Create(ctx, eventID, uuid.New(), 3)
		require.NoError(t, err)
		assert.Equal(t, 3600, b.TotalPriceCents)
		assert.Len(t, b.BookingCode, 9)
		assert.Equal(t, 2, e.AvailableCapacity)
		assert.Equal(t, 2, availableCapacity(t, pool, eventID))
	})

	t.Run("duplicate confirmed booking rejected", func(t *testing.T) {
		eventID := seedEvent(t, pool, models.EventStatusPublished, 5)
		userID := uuid.New()
		_, _, err := repo.Create(ctx, eventID, userID, 1)
		require.NoError(t, err)
		_, _, err = repo.Create(ctx, eventID, userID, 1)
		assert.ErrorIs(t, err, ErrAlreadyBooked)
		assert.Equal(t, 4, availableCapacity(t, pool, eventID))
	})

	t.Run("draft and missing events rejected", func(t *testing.T) {
		eventID := seedEvent(t, pool, models.EventStatusDraft, 5)
		_, _, err := repo.Create(ctx, eventID, uuid.New(), 1)
		assert.ErrorIs(t, err, ErrNotPublished)

		_, _, err = repo.Create(ctx, uuid.New(), uuid.New(), 1)
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("cancel restores capacity and allows rebooking", func(t *testing.T) {
		eventID := seedEvent(t, pool, models.EventStatusPublished, 2)
		userID := uuid.New()
		b, _, err := repo.Create(ctx, eventID, userID, 2)
		require.NoError(t, err)
		_, _, err = repo.Create(ctx, eventID, uuid.New(), 1)
		assert.ErrorIs(t, err, ErrSoldOut)

		cancelled, e, err := repo.Cancel(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, 2, e.AvailableCapacity)

		_, _, err = repo.Cancel(ctx, b.ID)
		assert.ErrorIs(t, err, ErrAlreadyCancelled)

		_, _, err = repo.Create(ctx, eventID, userID, 1)
		assert.NoError(t, err)
	})

	t.Run("lookups", func(t *testing.T) {
		eventID := seedEvent(t, pool, models.EventStatusPublished, 5)
		userID := uuid.New()
		b, _, err := repo.Create(ctx, eventID, userID, 1)
		require.NoError(t, err)

		got, err := repo.GetByCode(ctx, b.BookingCode)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, "Launch", got.EventTitle)

		mine, err := repo.ListForUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		all, err := repo.ListForEvent(ctx, eventID)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("concurrent bookings on the last seat", func(t *testing.T) {
		eventID := seedEvent(t, pool, models.EventStatusPublished, 1)

		const attempts = 8
		var wg sync.WaitGroup
		results := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, results[i] = repo.Create(ctx, eventID, uuid.New(), 1)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, ErrSoldOut), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 0, availableCapacity(t, pool, eventID))
	})
}
