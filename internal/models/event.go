package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus gates visibility and bookability.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s == EventStatusDraft || s == EventStatusPublished || s == EventStatusCancelled
}

// eventTransitions lists the statuses reachable from each status. Cancelled is terminal.
var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:     {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished: {EventStatusDraft, EventStatusCancelled},
	EventStatusCancelled: nil,
}

// CanTransitionTo reports whether an event in status s may move to next.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range eventTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Event is a ticketed event owned by an organization.
type Event struct {
	ID                uuid.UUID   `json:"id"`
	OrganizationID    uuid.UUID   `json:"organization_id"`
	Slug              string      `json:"slug"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Location          string      `json:"location"`
	CoverImageURL     string      `json:"cover_image_url,omitempty"`
	StartDate         time.Time   `json:"start_date"`
	EndDate           time.Time   `json:"end_date"`
	TotalCapacity     int         `json:"total_capacity"`
	AvailableCapacity int         `json:"available_capacity"`
	TicketPriceCents  int         `json:"ticket_price_cents"`
	Currency          string      `json:"currency"`
	IsFree            bool        `json:"is_free"`
	Status            EventStatus `json:"status"`
	CreatedBy         uuid.UUID   `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// BookedCount is the number of tickets taken.
func (e *Event) BookedCount() int {
	return e.TotalCapacity - e.AvailableCapacity
}

// BookedPercentage is computed at read time; 0 for an event without capacity.
func (e *Event) BookedPercentage() float64 {
	if e.TotalCapacity <= 0 {
		return 0
	}
	return float64(e.BookedCount()) * 100 / float64(e.TotalCapacity)
}

// UnitPriceCents is the per-ticket charge; free events cost nothing whatever price is stored.
func (e *Event) UnitPriceCents() int {
	if e.IsFree {
		return 0
	}
	return e.TicketPriceCents
}

// EventView is the API shape of an event, with derived fields.
type EventView struct {
	*Event
	BookedPercentage float64 `json:"booked_percentage"`
	SoldOut          bool    `json:"sold_out"`
}

// NewEventView wraps e with its derived fields.
func NewEventView(e *Event) EventView {
	return EventView{Event: e, BookedPercentage: e.BookedPercentage(), SoldOut: e.AvailableCapacity <= 0}
}
