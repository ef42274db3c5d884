package analytics

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/events"
	"github.com/fasticket/backend/pkg/response"
)

// Store provides per-event aggregates.
type Store interface {
	EventCounts(ctx context.Context, eventID uuid.UUID) (*Counts, error)
}

// Handler handles GET /events/:id/stats.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// StatsResponse is the JSON shape for an event's stats.
type StatsResponse struct {
	EventID           uuid.UUID `json:"event_id"`
	Status            string    `json:"status"`
	TotalCapacity     int       `json:"total_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	BookedCount       int       `json:"booked_count"`
	BookedPercentage  float64   `json:"booked_percentage"`
	ConfirmedBookings int       `json:"confirmed_bookings"`
	CancelledBookings int       `json:"cancelled_bookings"`
	TicketsSold       int       `json:"tickets_sold"`
	RevenueCents      int64     `json:"revenue_cents"`
	Currency          string    `json:"currency"`
	EmailsSent        int       `json:"emails_sent"`
	EmailsFailed      int       `json:"emails_failed"`
}

// GetByEvent handles GET /events/:id/stats. Call after events.RequireEventOrganizer.
func (h *Handler) GetByEvent(c *gin.Context) {
	e := events.EventFromContext(c)
	counts, err := h.store.EventCounts(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("event stats", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load event stats")
		return
	}
	response.OK(c, StatsResponse{
		EventID:           e.ID,
		Status:            string(e.Status),
		TotalCapacity:     e.TotalCapacity,
		AvailableCapacity: e.AvailableCapacity,
		BookedCount:       e.BookedCount(),
		BookedPercentage:  e.BookedPercentage(),
		ConfirmedBookings: counts.ConfirmedBookings,
		CancelledBookings: counts.CancelledBookings,
		TicketsSold:       counts.TicketsSold,
		RevenueCents:      counts.RevenueCents,
		Currency:          e.Currency,
		EmailsSent:        counts.EmailsSent,
		EmailsFailed:      counts.EmailsFailed,
	})
}
