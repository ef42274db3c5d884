package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasticket/backend/internal/models"
)

// Counts are the per-event aggregates read from bookings and email_logs.
type Counts struct {
	ConfirmedBookings int
	CancelledBookings int
	TicketsSold       int
	RevenueCents      int64
	EmailsSent        int
	EmailsFailed      int
}

// Repository computes event aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EventCounts aggregates bookings and email deliveries for an event.
func (r *Repository) EventCounts(ctx context.Context, eventID uuid.UUID) (*Counts, error) {
	const bookingsQ = `SELECT
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COALESCE(SUM(quantity) FILTER (WHERE status = $2), 0),
			COALESCE(SUM(total_price_cents) FILTER (WHERE status = $2), 0)
		FROM bookings WHERE event_id = $1`
	var out Counts
	if err := r.pool.QueryRow(ctx, bookingsQ, eventID, string(models.BookingStatusConfirmed), string(models.BookingStatusCancelled)).
		Scan(&out.ConfirmedBookings, &out.CancelledBookings, &out.TicketsSold, &out.RevenueCents); err != nil {
		return nil, fmt.Errorf("booking counts: %w", err)
	}

	const emailsQ = `SELECT
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3)
		FROM email_logs WHERE event_id = $1`
	if err := r.pool.QueryRow(ctx, emailsQ, eventID, models.EmailLogStatusSent, models.EmailLogStatusFailed).
		Scan(&out.EmailsSent, &out.EmailsFailed); err != nil {
		return nil, fmt.Errorf("email counts: %w", err)
	}
	return &out, nil
}
