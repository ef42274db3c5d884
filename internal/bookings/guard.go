package bookings

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fasticket/backend/internal/models"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrNotPublished         = errors.New("event is not open for booking")
	ErrSoldOut              = errors.New("event is sold out")
	ErrInsufficientCapacity = errors.New("not enough tickets left")
	ErrAlreadyBooked        = errors.New("you already have a booking for this event")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrAlreadyCancelled     = errors.New("booking is already cancelled")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	errBookingCodeExhausted = errors.New("could not allocate a unique booking code")
)

// MaxQuantity caps tickets per booking.
const MaxQuantity = 10

// CapacityError reports how many tickets remain when a request asks for more.
type CapacityError struct {
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("only %d tickets left", e.Available)
}

func (e *CapacityError) Unwrap() error { return ErrInsufficientCapacity }

// CheckBookable decides whether quantity tickets may be booked for e as it is now.
func CheckBookable(e *models.Event, quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	if e.Status != models.EventStatusPublished {
		return ErrNotPublished
	}
	if e.AvailableCapacity <= 0 {
		return ErrSoldOut
	}
	if e.AvailableCapacity < quantity {
		return &CapacityError{Available: e.AvailableCapacity}
	}
	return nil
}

// TotalPrice is the charge recorded for quantity tickets.
func TotalPrice(e *models.Event, quantity int) int {
	return e.UnitPriceCents() * quantity
}

// CanView reports whether a user may see a booking: its owner or an organizer of the event's organization.
func CanView(b *models.Booking, userID uuid.UUID, isOrganizer bool) bool {
	return b.UserID == userID || isOrganizer
}
