package bookings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database"
	"github.com/fasticket/backend/pkg/utils"
)

const (
	confirmedPerUserIndex = "uq_bookings_confirmed_per_user"
	bookingCodeConstraint = "bookings_booking_code_key"
	bookingCodeAttempts   = 5
)

// Repository handles booking persistence. Booking creation and cancellation each run in one transaction
// that locks the event row, so capacity checks and updates cannot interleave.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a booking repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookingColumns = `b.id, b.event_id, b.user_id, b.quantity, b.total_price_cents, b.status, b.booking_code,
	b.cancelled_at, b.created_at, b.updated_at`

func scanBooking(row pgx.Row, extra ...interface{}) (*models.Booking, error) {
	var b models.Booking
	dest := append([]interface{}{&b.ID, &b.EventID, &b.UserID, &b.Quantity, &b.TotalPriceCents, &b.Status,
		&b.BookingCode, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// lockEvent loads the fields booking decisions need and holds the row lock until the transaction ends.
func lockEvent(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, organization_id, slug, title, start_date, end_date, total_capacity, available_capacity,
			ticket_price_cents, currency, is_free, status
		FROM events WHERE id = $1 FOR UPDATE`
	var e models.Event
	err := tx.QueryRow(ctx, q, id).Scan(&e.ID, &e.OrganizationID, &e.Slug, &e.Title, &e.StartDate, &e.EndDate,
		&e.TotalCapacity, &e.AvailableCapacity, &e.TicketPriceCents, &e.Currency, &e.IsFree, &e.Status)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event: %w", err)
	}
	return &e, nil
}

// Create books quantity tickets of an event for a user. The returned event carries the capacity left
// after the booking.
func (r *Repository) Create(ctx context.Context, eventID, userID uuid.UUID, quantity int) (*models.Booking, *models.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckBookable(e, quantity); err != nil {
		return nil, nil, err
	}

	var exists bool
	const qExists = `SELECT EXISTS (SELECT 1 FROM bookings WHERE event_id = $1 AND user_id = $2 AND status = $3)`
	if err := tx.QueryRow(ctx, qExists, eventID, userID, models.BookingStatusConfirmed).Scan(&exists); err != nil {
		return nil, nil, fmt.Errorf("check existing booking: %w", err)
	}
	if exists {
		return nil, nil, ErrAlreadyBooked
	}

	const qDecrement = `UPDATE events SET available_capacity = available_capacity - $2, updated_at = NOW()
		WHERE id = $1 AND available_capacity >= $2
		RETURNING available_capacity`
	if err := tx.QueryRow(ctx, qDecrement, eventID, quantity).Scan(&e.AvailableCapacity); err != nil {
		if database.IsNoRows(err) {
			return nil, nil, ErrSoldOut
		}
		return nil, nil, fmt.Errorf("decrement capacity: %w", err)
	}

	b := &models.Booking{
		EventID:         eventID,
		UserID:          userID,
		Quantity:        quantity,
		TotalPriceCents: TotalPrice(e, quantity),
		Status:          models.BookingStatusConfirmed,
	}
	if err := insertBooking(ctx, tx, b); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return b, e, nil
}

// insertBooking retries on booking code collisions inside a savepoint so the outer transaction survives.
func insertBooking(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	const q = `INSERT INTO bookings (event_id, user_id, quantity, total_price_cents, status, booking_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	for attempt := 0; attempt < bookingCodeAttempts; attempt++ {
		code, err := utils.NewBookingCode()
		if err != nil {
			return err
		}
		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		err = sp.QueryRow(ctx, q, b.EventID, b.UserID, b.Quantity, b.TotalPriceCents, b.Status, code).
			Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err == nil {
			b.BookingCode = code
			return sp.Commit(ctx)
		}
		_ = sp.Rollback(ctx)
		switch {
		case database.IsUniqueViolation(err, confirmedPerUserIndex):
			return ErrAlreadyBooked
		case database.IsUniqueViolation(err, bookingCodeConstraint):
			continue
		default:
			return fmt.Errorf("insert booking: %w", err)
		}
	}
	return errBookingCodeExhausted
}

// Cancel marks a confirmed booking cancelled and gives its tickets back, capped at the event's total.
// The event row is locked before the booking row, the same order Create uses.
func (r *Repository) Cancel(ctx context.Context, bookingID uuid.UUID) (*models.Booking, *models.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var eventID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT event_id FROM bookings WHERE id = $1`, bookingID).Scan(&eventID); err != nil {
		if database.IsNoRows(err) {
			return nil, nil, ErrBookingNotFound
		}
		return nil, nil, fmt.Errorf("load booking: %w", err)
	}
	e, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, nil, err
	}
	b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1 FOR UPDATE`, bookingID))
	if err != nil {
		return nil, nil, err
	}
	if b.Status == models.BookingStatusCancelled {
		return nil, nil, ErrAlreadyCancelled
	}

	const qCancel = `UPDATE bookings SET status = $2, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING status, cancelled_at, updated_at`
	if err := tx.QueryRow(ctx, qCancel, bookingID, models.BookingStatusCancelled).
		Scan(&b.Status, &b.CancelledAt, &b.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("cancel booking: %w", err)
	}
	const qRestore = `UPDATE events SET available_capacity = LEAST(total_capacity, available_capacity + $2), updated_at = NOW()
		WHERE id = $1
		RETURNING available_capacity`
	if err := tx.QueryRow(ctx, qRestore, eventID, b.Quantity).Scan(&e.AvailableCapacity); err != nil {
		return nil, nil, fmt.Errorf("restore capacity: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return b, e, nil
}

const bookingWithEventQuery = `SELECT ` + bookingColumns + `, e.title, e.slug, e.start_date, e.status, e.organization_id
	FROM bookings b
	INNER JOIN events e ON e.id = b.event_id`

func scanBookingWithEvent(row pgx.Row) (*models.BookingWithEvent, error) {
	var bw models.BookingWithEvent
	b, err := scanBooking(row, &bw.EventTitle, &bw.EventSlug, &bw.EventStartDate, &bw.EventStatus, &bw.OrganizationID)
	if err != nil {
		return nil, err
	}
	bw.Booking = *b
	return &bw, nil
}

// GetByID returns a booking with its event summary.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.BookingWithEvent, error) {
	return scanBookingWithEvent(r.pool.QueryRow(ctx, bookingWithEventQuery+` WHERE b.id = $1`, id))
}

// GetByCode returns a booking by its booking code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.BookingWithEvent, error) {
	return scanBookingWithEvent(r.pool.QueryRow(ctx, bookingWithEventQuery+` WHERE b.booking_code = $1`, code))
}

// ListForUser returns a user's bookings, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.BookingWithEvent, error) {
	rows, err := r.pool.Query(ctx, bookingWithEventQuery+` WHERE b.user_id = $1 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.BookingWithEvent{}
	for rows.Next() {
		bw, err := scanBookingWithEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *bw)
	}
	return list, rows.Err()
}

// ListForEvent returns all bookings of an event with attendee details, oldest first.
func (r *Repository) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventBooking, error) {
	q := `SELECT ` + bookingColumns + `, COALESCE(p.full_name, ''), COALESCE(p.email, '')
		FROM bookings b
		LEFT JOIN profiles p ON p.id = b.user_id
		WHERE b.event_id = $1
		ORDER BY b.created_at ASC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.EventBooking{}
	for rows.Next() {
		var eb models.EventBooking
		b, err := scanBooking(rows, &eb.AttendeeName, &eb.AttendeeEmail)
		if err != nil {
			return nil, err
		}
		eb.Booking = *b
		list = append(list, eb)
	}
	return list, rows.Err()
}
