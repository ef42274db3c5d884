package emaillogs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database/dbtest"
)

// seedBooking creates an org, a published event, an attendee profile and a confirmed booking.
func seedBooking(t *testing.T, pool *pgxpool.Pool, email string) (eventID, bookingID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	var orgID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO organizations (name, slug, created_by) VALUES ('Acme', $1, $2) RETURNING id`,
		"acme-"+uuid.NewString()[:8], uuid.New()).Scan(&orgID))
	start := time.Now().Add(72 * time.Hour)
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO events (organization_id, slug, title, location, start_date, end_date, total_capacity,
			available_capacity, ticket_price_cents, is_free, status, created_by)
		VALUES ($1, 'meetup', 'Meetup', 'Hall A', $2, $3, 10, 8, 500, false, 'published', $4) RETURNING id`,
		orgID, start, start.Add(time.Hour), uuid.New()).Scan(&eventID))
	_, err := pool.Exec(ctx, `INSERT INTO profiles (id, email, full_name) VALUES ($1, $2, 'Ada')`, userID, email)
	require.NoError(t, err)
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO bookings (event_id, user_id, quantity, total_price_cents, booking_code)
		VALUES ($1, $2, 2, 1000, $3) RETURNING id`,
		eventID, userID, uuid.NewString()[:8]).Scan(&bookingID))
	return eventID, bookingID
}

func TestRepository(t *testing.T) {
	pool := dbtest.NewPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	eventID, bookingID := seedBooking(t, pool, "ada@example.com")

	t.Run("recipient joins booking, event and profile", func(t *testing.T) {
		rc, err := repo.Recipient(ctx, bookingID)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", rc.Email)
		assert.Equal(t, "Ada", rc.FullName)
		assert.Equal(t, eventID, rc.EventID)
		assert.Equal(t, "Meetup", rc.EventTitle)
		assert.Equal(t, "Hall A", rc.EventLocation)
		assert.Equal(t, 2, rc.Quantity)

		_, err = repo.Recipient(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("log lifecycle", func(t *testing.T) {
		el := &models.EmailLog{
			EventID:        &eventID,
			BookingID:      &bookingID,
			EmailType:      models.EmailTypeBookingConfirmation,
			RecipientEmail: "ada@example.com",
		}
		require.NoError(t, repo.Create(ctx, el))
		require.NotEqual(t, uuid.Nil, el.ID)

		got, err := repo.GetByID(ctx, el.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EmailLogStatusPending, got.Status)
		assert.Empty(t, got.Subject)

		require.NoError(t, repo.MarkFailed(ctx, el.ID, "connection refused"))
		got, err = repo.GetByID(ctx, el.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EmailLogStatusFailed, got.Status)
		assert.Equal(t, "connection refused", got.ErrorMessage)

		require.NoError(t, repo.MarkSent(ctx, el.ID, "Your tickets for Meetup"))
		got, err = repo.GetByID(ctx, el.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EmailLogStatusSent, got.Status)
		assert.Equal(t, "Your tickets for Meetup", got.Subject)
		assert.Empty(t, got.ErrorMessage)
		assert.NotNil(t, got.SentAt)

		assert.ErrorIs(t, repo.MarkSent(ctx, uuid.New(), "x"), ErrNotFound)
	})

	t.Run("list by event", func(t *testing.T) {
		logs, err := repo.ListByEvent(ctx, eventID)
		require.NoError(t, err)
		assert.Len(t, logs, 1)

		logs, err = repo.ListByEvent(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}
