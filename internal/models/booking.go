package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus for bookings.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a user's reservation of one or more tickets for an event.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	EventID         uuid.UUID     `json:"event_id"`
	UserID          uuid.UUID     `json:"user_id"`
	Quantity        int           `json:"quantity"`
	TotalPriceCents int           `json:"total_price_cents"`
	Status          BookingStatus `json:"status"`
	BookingCode     string        `json:"booking_code"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BookingWithEvent is a booking listed with the event fields an attendee needs.
type BookingWithEvent struct {
	Booking
	EventTitle     string      `json:"event_title"`
	EventSlug      string      `json:"event_slug"`
	EventStartDate time.Time   `json:"event_start_date"`
	EventStatus    EventStatus `json:"event_status"`
	OrganizationID uuid.UUID   `json:"organization_id"`
}

// EventBooking is a booking listed for an organizer, with attendee details.
type EventBooking struct {
	Booking
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}
