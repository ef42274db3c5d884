package events

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

func intPtr(v int) *int { return &v }

func TestChangesApply_CapacityDelta(t *testing.T) {
	e := &models.Event{TotalCapacity: 100, AvailableCapacity: 30}

	require.NoError(t, Changes{TotalCapacity: intPtr(120)}.Apply(e))
	assert.Equal(t, 120, e.TotalCapacity)
	assert.Equal(t, 50, e.AvailableCapacity)

	require.NoError(t, Changes{TotalCapacity: intPtr(70)}.Apply(e))
	assert.Equal(t, 70, e.TotalCapacity)
	assert.Equal(t, 0, e.AvailableCapacity)

	err := Changes{TotalCapacity: intPtr(69)}.Apply(e)
	assert.ErrorIs(t, err, ErrCapacityBelowBooked)
}

func TestChangesApply_Dates(t *testing.T) {
	start := time.Date(2026, 11, 1, 19, 0, 0, 0, time.UTC)
	e := &models.Event{StartDate: start, EndDate: start.Add(2 * time.Hour)}

	before := start.Add(-time.Hour)
	assert.ErrorIs(t, Changes{EndDate: &before}.Apply(e), ErrInvalidDates)
}

func TestChangesApply_FreeZeroesPrice(t *testing.T) {
	free := true
	e := &models.Event{TicketPriceCents: 1500}
	require.NoError(t, Changes{IsFree: &free}.Apply(e))
	assert.Equal(t, 0, e.TicketPriceCents)
}

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{}
	f.Normalize()
	assert.Equal(t, DefaultListLimit, f.Limit)

	f = ListFilter{Limit: 1000, Offset: -3}
	f.Normalize()
	assert.Equal(t, MaxListLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func seedOrganization(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO organizations (name, slug, created_by) VALUES ('Acme', $1, $2) RETURNING id`,
		"acme-"+uuid.NewString()[:8], uuid.New()).Scan(&id))
	return id
}

// seedBooking inserts a confirmed booking and takes its seats, as the booking path does.
func seedBooking(t *testing.T, pool *pgxpool.Pool, eventID uuid.UUID, quantity int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO bookings (event_id, user_id, quantity, booking_code) VALUES ($1, $2, $3, $4) RETURNING id`,
		eventID, uuid.New(), quantity, uuid.NewString()[:9]).Scan(&id))
	_, err := pool.Exec(ctx, `UPDATE events SET available_capacity = available_capacity - $2 WHERE id = $1`, eventID, quantity)
	require.NoError(t, err)
	return id
}

func newPublishedEvent(t *testing.T, repo *Repository, orgID uuid.UUID, capacity int) *models.Event {
	t.Helper()
	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	e := &models.Event{
		OrganizationID: orgID,
		Title:          "Summer Jam",
		StartDate:      start,
		EndDate:        start.Add(3 * time.Hour),
		TotalCapacity:  capacity,
		Status:         models.EventStatusPublished,
		CreatedBy:      uuid.New(),
	}
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func TestRepository(t *testing.T) {
	pool := dbtest.NewPool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	t.Run("create derives slug and suffixes collisions", func(t *testing.T) {
		orgID := seedOrganization(t, pool)
		a := newPublishedEvent(t, repo, orgID, 10)
		b := newPublishedEvent(t, repo, orgID, 10)
		assert.Equal(t, "summer-jam", a.Slug)
		assert.NotEqual(t, a.Slug, b.Slug)
		assert.Equal(t, 10, a.AvailableCapacity)
	})

	t.Run("update shifts available capacity by the delta", func(t *testing.T) {
		e := newPublishedEvent(t, repo, seedOrganization(t, pool), 10)
		seedBooking(t, pool, e.ID, 4)

		got, err := repo.Update(ctx, e.ID, Changes{TotalCapacity: intPtr(15)})
		require.NoError(t, err)
		assert.Equal(t, 15, got.TotalCapacity)
		assert.Equal(t, 11, got.AvailableCapacity)

		stored, err := repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 11, stored.AvailableCapacity)

		_, err = repo.Update(ctx, e.ID, Changes{TotalCapacity: intPtr(3)})
		assert.ErrorIs(t, err, ErrCapacityBelowBooked)
		stored, err = repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 15, stored.TotalCapacity)

		_, err = repo.Update(ctx, uuid.New(), Changes{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelling cancels confirmed bookings and restores capacity", func(t *testing.T) {
		e := newPublishedEvent(t, repo, seedOrganization(t, pool), 10)
		first := seedBooking(t, pool, e.ID, 2)
		second := seedBooking(t, pool, e.ID, 3)

		got, cancelled, err := repo.UpdateStatus(ctx, e.ID, models.EventStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, models.EventStatusCancelled, got.Status)
		assert.Equal(t, 10, got.AvailableCapacity)
		assert.ElementsMatch(t, []uuid.UUID{first, second}, cancelled)

		var confirmed int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM bookings WHERE event_id = $1 AND status = 'confirmed'`, e.ID).Scan(&confirmed))
		assert.Equal(t, 0, confirmed)

		stored, err := repo.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, stored.AvailableCapacity)

		_, _, err = repo.UpdateStatus(ctx, e.ID, models.EventStatusPublished)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unpublishing keeps bookings", func(t *testing.T) {
		e := newPublishedEvent(t, repo, seedOrganization(t, pool), 10)
		seedBooking(t, pool, e.ID, 2)

		got, cancelled, err := repo.UpdateStatus(ctx, e.ID, models.EventStatusDraft)
		require.NoError(t, err)
		assert.Empty(t, cancelled)
		assert.Equal(t, 8, got.AvailableCapacity)
	})
}
