package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for booking notifications.
const (
	EmailTypeBookingConfirmation = "booking_confirmation"
	EmailTypeBookingCancelled    = "booking_cancelled"
	EmailTypeEventCancelled      = "event_cancelled"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records notification emails and their delivery state.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
