package emaillogs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database"
)

var (
	ErrNotFound    = errors.New("email log not found")
	ErrNoRecipient = errors.New("booking has no recipient email")
)

// maxErrorLength caps stored SMTP error text.
const maxErrorLength = 1000

// Recipient is everything a booking email needs, resolved from the booking, its event and the attendee profile.
type Recipient struct {
	BookingID       uuid.UUID
	EventID         uuid.UUID
	OrganizationID  uuid.UUID
	Email           string
	FullName        string
	BookingCode     string
	Quantity        int
	TotalPriceCents int
	Currency        string
	EventTitle      string
	EventSlug       string
	EventLocation   string
	EventStartDate  time.Time
}

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const logColumns = `id, event_id, booking_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at`

func scanLog(row pgx.Row) (*models.EmailLog, error) {
	var el models.EmailLog
	var subject, errMsg *string
	if err := row.Scan(&el.ID, &el.EventID, &el.BookingID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status,
		&el.SentAt, &errMsg, &el.CreatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if subject != nil {
		el.Subject = *subject
	}
	if errMsg != nil {
		el.ErrorMessage = *errMsg
	}
	return &el, nil
}

// Create inserts a pending log row and fills in its id and created_at.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	const q = `INSERT INTO email_logs (event_id, booking_id, email_type, recipient_email, subject, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, el.EventID, el.BookingID, el.EmailType, el.RecipientEmail, el.Subject, el.Status).
		Scan(&el.ID, &el.CreatedAt); err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// GetByID returns a single log row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	q := `SELECT ` + logColumns + ` FROM email_logs WHERE id = $1`
	return scanLog(r.pool.QueryRow(ctx, q, id))
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, subject string) error {
	const q = `UPDATE email_logs SET status = $2, subject = NULLIF($3, ''), sent_at = NOW(), error_message = NULL
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusSent, subject)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if len(reason) > maxErrorLength {
		reason = reason[:maxErrorLength]
	}
	const q = `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByEvent returns email logs for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	q := `SELECT ` + logColumns + ` FROM email_logs WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]*models.EmailLog, 0)
	for rows.Next() {
		el, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}

// Recipient resolves the attendee and event details of a booking.
func (r *Repository) Recipient(ctx context.Context, bookingID uuid.UUID) (*Recipient, error) {
	const q = `SELECT b.id, e.id, e.organization_id, COALESCE(p.email, ''), COALESCE(p.full_name, ''),
			b.booking_code, b.quantity, b.total_price_cents, e.currency, e.title, e.slug, e.location, e.start_date
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		LEFT JOIN profiles p ON p.id = b.user_id
		WHERE b.id = $1`
	var rc Recipient
	err := r.pool.QueryRow(ctx, q, bookingID).Scan(&rc.BookingID, &rc.EventID, &rc.OrganizationID, &rc.Email,
		&rc.FullName, &rc.BookingCode, &rc.Quantity, &rc.TotalPriceCents, &rc.Currency, &rc.EventTitle,
		&rc.EventSlug, &rc.EventLocation, &rc.EventStartDate)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	return &rc, nil
}
