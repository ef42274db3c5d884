package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database"
	"github.com/fasticket/backend/pkg/utils"
)

var (
	ErrNotFound            = errors.New("event not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrCapacityBelowBooked = errors.New("capacity below booked tickets")
	ErrInvalidDates        = errors.New("end date before start date")
)

const (
	// DefaultListLimit and MaxListLimit bound GET /events pagination.
	DefaultListLimit = 20
	MaxListLimit     = 100

	slugAttempts = 5
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, organization_id, slug, title, description, location, cover_image_url, start_date, end_date,
	total_capacity, available_capacity, ticket_price_cents, currency, is_free, status, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Slug, &e.Title, &e.Description, &e.Location, &e.CoverImageURL,
		&e.StartDate, &e.EndDate, &e.TotalCapacity, &e.AvailableCapacity, &e.TicketPriceCents, &e.Currency,
		&e.IsFree, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Create inserts a new event. The slug comes from the title and gets a random suffix when it collides
// with another event of the same organization.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	base := e.Slug
	if base == "" {
		base = utils.Slugify(e.Title)
	}
	if base == "" {
		base = "event"
	}
	e.Slug = base
	e.AvailableCapacity = e.TotalCapacity
	if e.IsFree {
		e.TicketPriceCents = 0
	}
	if e.Status == "" {
		e.Status = models.EventStatusDraft
	}
	if e.Currency == "" {
		e.Currency = "USD"
	}

	const q = `INSERT INTO events (organization_id, slug, title, description, location, cover_image_url, start_date, end_date,
			total_capacity, available_capacity, ticket_price_cents, currency, is_free, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`
	for attempt := 0; ; attempt++ {
		err := r.pool.QueryRow(ctx, q, e.OrganizationID, e.Slug, e.Title, e.Description, e.Location, e.CoverImageURL,
			e.StartDate, e.EndDate, e.TotalCapacity, e.AvailableCapacity, e.TicketPriceCents, e.Currency, e.IsFree,
			e.Status, e.CreatedBy).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err == nil {
			return nil
		}
		if !database.IsUniqueViolation(err) || attempt+1 >= slugAttempts {
			return fmt.Errorf("insert event: %w", err)
		}
		suffix, rerr := utils.RandomString(4)
		if rerr != nil {
			return rerr
		}
		e.Slug = utils.SlugWithSuffix(base, strings.ToLower(suffix))
	}
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// ListFilter narrows event listings.
type ListFilter struct {
	Query          string
	OrganizationID *uuid.UUID
	Upcoming       bool
	// IncludeUnpublished lists drafts and cancelled events too; only for members of OrganizationID.
	IncludeUnpublished bool
	Limit              int
	Offset             int
}

// Normalize clamps pagination to the allowed range.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// List returns events matching the filter, soonest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Event, error) {
	f.Normalize()
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !f.IncludeUnpublished || f.OrganizationID == nil {
		conds = append(conds, "status = "+arg(string(models.EventStatusPublished)))
	}
	if f.OrganizationID != nil {
		conds = append(conds, "organization_id = "+arg(*f.OrganizationID))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + q + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+" OR location ILIKE "+p+")")
	}
	if f.Upcoming {
		conds = append(conds, "end_date >= "+arg(time.Now()))
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY start_date ASC, id ASC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// Changes holds an event edit; nil fields are left unchanged.
type Changes struct {
	Title            *string
	Description      *string
	Location         *string
	StartDate        *time.Time
	EndDate          *time.Time
	TotalCapacity    *int
	TicketPriceCents *int
	Currency         *string
	IsFree           *bool
}

// Apply edits e in place. A new total capacity shifts available capacity by the same delta and may not drop
// below the tickets already booked.
func (ch Changes) Apply(e *models.Event) error {
	if ch.Title != nil {
		e.Title = *ch.Title
	}
	if ch.Description != nil {
		e.Description = *ch.Description
	}
	if ch.Location != nil {
		e.Location = *ch.Location
	}
	if ch.StartDate != nil {
		e.StartDate = *ch.StartDate
	}
	if ch.EndDate != nil {
		e.EndDate = *ch.EndDate
	}
	if e.EndDate.Before(e.StartDate) {
		return ErrInvalidDates
	}
	if ch.TotalCapacity != nil {
		booked := e.BookedCount()
		if *ch.TotalCapacity < booked {
			return ErrCapacityBelowBooked
		}
		e.AvailableCapacity += *ch.TotalCapacity - e.TotalCapacity
		e.TotalCapacity = *ch.TotalCapacity
	}
	if ch.TicketPriceCents != nil {
		e.TicketPriceCents = *ch.TicketPriceCents
	}
	if ch.Currency != nil {
		e.Currency = strings.ToUpper(*ch.Currency)
	}
	if ch.IsFree != nil {
		e.IsFree = *ch.IsFree
	}
	if e.IsFree {
		e.TicketPriceCents = 0
	}
	return nil
}

// Update applies changes under a row lock so capacity edits cannot race bookings.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, ch Changes) (*models.Event, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := ch.Apply(e); err != nil {
		return nil, err
	}
	const q = `UPDATE events SET title = $2, description = $3, location = $4, start_date = $5, end_date = $6,
			total_capacity = $7, available_capacity = $8, ticket_price_cents = $9, currency = $10, is_free = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	if err := tx.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Location, e.StartDate, e.EndDate,
		e.TotalCapacity, e.AvailableCapacity, e.TicketPriceCents, e.Currency, e.IsFree).Scan(&e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// UpdateStatus moves the event along the status transition table. Cancelling also cancels every confirmed
// booking and restores the capacity; the ids of those bookings are returned for notification.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, next models.EventStatus) (*models.Event, []uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, nil, err
	}
	if !e.Status.CanTransitionTo(next) {
		return nil, nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, e.Status, next)
	}

	var cancelled []uuid.UUID
	if next == models.EventStatusCancelled {
		rows, err := tx.Query(ctx, `UPDATE bookings SET status = $2, cancelled_at = NOW(), updated_at = NOW()
			WHERE event_id = $1 AND status = $3
			RETURNING id`, id, models.BookingStatusCancelled, models.BookingStatusConfirmed)
		if err != nil {
			return nil, nil, fmt.Errorf("cancel bookings: %w", err)
		}
		cancelled, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return nil, nil, fmt.Errorf("cancel bookings: %w", err)
		}
		e.AvailableCapacity = e.TotalCapacity
	}

	const q = `UPDATE events SET status = $2, available_capacity = $3, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	if err := tx.QueryRow(ctx, q, id, next, e.AvailableCapacity).Scan(&e.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	e.Status = next
	return e, cancelled, nil
}

// SetCoverImage stores the event's cover image URL.
func (r *Repository) SetCoverImage(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET cover_image_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("set cover image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event; its bookings cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
