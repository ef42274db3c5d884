package emaillogs

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/events"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/response"
)

// Store is the persistence the email log handlers need.
type Store interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error)
	Recipient(ctx context.Context, bookingID uuid.UUID) (*Recipient, error)
}

// Sender queues an email for a resolved recipient.
type Sender interface {
	Notify(ctx context.Context, rc *Recipient, emailType string) (*models.EmailLog, error)
}

var resendableTypes = map[string]bool{
	models.EmailTypeBookingConfirmation: true,
	models.EmailTypeBookingCancelled:    true,
	models.EmailTypeEventCancelled:      true,
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	store  Store
	sender Sender
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(store Store, sender Sender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, sender: sender, logger: logger}
}

// ListByEvent handles GET /events/:id/emails. Call after events.RequireEventOrganizer.
func (h *Handler) ListByEvent(c *gin.Context) {
	e := events.EventFromContext(c)
	logs, err := h.store.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("list email logs", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// ResendRequest is the body for POST /events/:id/emails/resend.
type ResendRequest struct {
	BookingID string `json:"booking_id" binding:"required,uuid"`
	EmailType string `json:"email_type"`
}

// Resend handles POST /events/:id/emails/resend: queues a fresh copy of a booking email.
func (h *Handler) Resend(c *gin.Context) {
	e := events.EventFromContext(c)
	var body ResendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "booking_id required")
		return
	}
	if body.EmailType == "" {
		body.EmailType = models.EmailTypeBookingConfirmation
	}
	if !resendableTypes[body.EmailType] {
		response.BadRequest(c, "invalid email_type")
		return
	}
	bookingID := uuid.MustParse(body.BookingID)

	ctx := c.Request.Context()
	rc, err := h.store.Recipient(ctx, bookingID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("load recipient", zap.String("booking_id", bookingID.String()), zap.Error(err))
		response.Internal(c, "failed to load booking")
		return
	}
	if rc == nil || rc.EventID != e.ID {
		response.NotFound(c, "booking not found")
		return
	}

	el, err := h.sender.Notify(ctx, rc, body.EmailType)
	if err != nil {
		if errors.Is(err, ErrNoRecipient) {
			response.BadRequest(c, "attendee has no email address")
			return
		}
		h.logger.Error("resend email", zap.String("booking_id", bookingID.String()), zap.Error(err))
		response.Internal(c, "failed to queue email")
		return
	}
	response.OK(c, el)
}
