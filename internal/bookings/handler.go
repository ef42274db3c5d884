package bookings

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/events"
	"github.com/fasticket/backend/internal/metrics"
	"github.com/fasticket/backend/internal/middleware"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/response"
)

// Store is the persistence the booking handlers need.
type Store interface {
	Create(ctx context.Context, eventID, userID uuid.UUID, quantity int) (*models.Booking, *models.Event, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) (*models.Booking, *models.Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.BookingWithEvent, error)
	GetByCode(ctx context.Context, code string) (*models.BookingWithEvent, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.BookingWithEvent, error)
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventBooking, error)
}

// OrganizerChecker answers whether a user organizes an organization.
type OrganizerChecker interface {
	IsOrganizer(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// Notifier queues booking emails.
type Notifier interface {
	BookingConfirmed(ctx context.Context, bookingID uuid.UUID) error
	BookingCancelled(ctx context.Context, bookingID uuid.UUID, emailType string) error
}

// AvailabilityPublisher pushes capacity changes to live clients.
type AvailabilityPublisher interface {
	PublishAvailability(ctx context.Context, e *models.Event)
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	store     Store
	access    OrganizerChecker
	notifier  Notifier
	publisher AvailabilityPublisher
	logger    *zap.Logger
}

// NewHandler creates a booking handler. notifier and publisher may be nil.
func NewHandler(store Store, access OrganizerChecker, notifier Notifier, publisher AvailabilityPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, access: access, notifier: notifier, publisher: publisher, logger: logger}
}

// CreateRequest is the body for POST /bookings/create.
type CreateRequest struct {
	EventID  string `json:"event_id" binding:"required"`
	Quantity *int   `json:"quantity"`
}

// Create handles POST /bookings/create.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "event_id required")
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 || quantity > MaxQuantity {
		response.BadRequest(c, "quantity must be between 1 and 10")
		return
	}

	b, e, err := h.store.Create(c.Request.Context(), eventID, userID, quantity)
	if err != nil {
		metrics.RecordBooking(bookingOutcome(err), quantity)
		var capErr *CapacityError
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, "event not found")
		case errors.As(err, &capErr):
			response.BadRequest(c, capErr.Error())
		case errors.Is(err, ErrNotPublished), errors.Is(err, ErrSoldOut),
			errors.Is(err, ErrAlreadyBooked), errors.Is(err, ErrInvalidQuantity):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("create booking",
				zap.String("event_id", eventID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			response.Internal(c, "failed to create booking")
		}
		return
	}

	metrics.RecordBooking(metrics.OutcomeConfirmed, quantity)
	h.logger.Info("booking confirmed",
		zap.String("booking_id", b.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.Int("quantity", quantity),
		zap.Int("available_capacity", e.AvailableCapacity),
	)
	h.publish(c.Request.Context(), e)
	if h.notifier != nil {
		if err := h.notifier.BookingConfirmed(c.Request.Context(), b.ID); err != nil {
			h.logger.Warn("queue confirmation email", zap.String("booking_id", b.ID.String()), zap.Error(err))
		}
	}
	response.Created(c, b)
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrEventNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrNotPublished):
		return metrics.OutcomeNotOpen
	case errors.Is(err, ErrSoldOut):
		return metrics.OutcomeSoldOut
	case errors.Is(err, ErrInsufficientCapacity):
		return metrics.OutcomeInsufficient
	case errors.Is(err, ErrAlreadyBooked):
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeError
	}
}

// ListMine handles GET /bookings.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list bookings", zap.Error(err))
		response.Internal(c, "failed to list bookings")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /bookings/:id. Visible to the owner and organizers of the event's organization.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}
	b, ok := h.loadVisible(c, func(ctx context.Context) (*models.BookingWithEvent, error) {
		return h.store.GetByID(ctx, id)
	})
	if !ok {
		return
	}
	response.OK(c, b)
}

// GetByCode handles GET /bookings/code/:code.
func (h *Handler) GetByCode(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		response.BadRequest(c, "booking code required")
		return
	}
	b, ok := h.loadVisible(c, func(ctx context.Context) (*models.BookingWithEvent, error) {
		return h.store.GetByCode(ctx, code)
	})
	if !ok {
		return
	}
	response.OK(c, b)
}

// Cancel handles POST /bookings/:id/cancel. Owner or organizer of the event's organization.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}
	current, ok := h.loadVisible(c, func(ctx context.Context) (*models.BookingWithEvent, error) {
		return h.store.GetByID(ctx, id)
	})
	if !ok {
		return
	}
	if current.Status == models.BookingStatusCancelled {
		response.BadRequest(c, ErrAlreadyCancelled.Error())
		return
	}

	b, e, err := h.store.Cancel(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrEventNotFound):
			response.NotFound(c, "booking not found")
		case errors.Is(err, ErrAlreadyCancelled):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("cancel booking", zap.String("booking_id", id.String()), zap.Error(err))
			response.Internal(c, "failed to cancel booking")
		}
		return
	}

	metrics.RecordCancellation()
	h.publish(c.Request.Context(), e)
	if h.notifier != nil {
		if err := h.notifier.BookingCancelled(c.Request.Context(), b.ID, models.EmailTypeBookingCancelled); err != nil {
			h.logger.Warn("queue cancellation email", zap.String("booking_id", b.ID.String()), zap.Error(err))
		}
	}
	response.OK(c, b)
}

// ListForEvent handles GET /events/:id/bookings. Requires organizer; the event comes from the context.
func (h *Handler) ListForEvent(c *gin.Context) {
	e := events.EventFromContext(c)
	list, err := h.store.ListForEvent(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("list event bookings", zap.Error(err))
		response.Internal(c, "failed to list bookings")
		return
	}
	response.OK(c, list)
}

// loadVisible loads a booking and hides it (404) from users who are neither its owner nor an organizer.
func (h *Handler) loadVisible(c *gin.Context, load func(context.Context) (*models.BookingWithEvent, error)) (*models.BookingWithEvent, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	b, err := load(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			response.NotFound(c, "booking not found")
			return nil, false
		}
		h.logger.Error("load booking", zap.Error(err))
		response.Internal(c, "failed to load booking")
		return nil, false
	}
	organizer := false
	if b.UserID != userID {
		organizer, err = h.access.IsOrganizer(c.Request.Context(), b.OrganizationID, userID)
		if err != nil {
			h.logger.Error("org access check failed", zap.Error(err))
			response.Internal(c, "failed to load booking")
			return nil, false
		}
	}
	if !CanView(&b.Booking, userID, organizer) {
		response.NotFound(c, "booking not found")
		return nil, false
	}
	return b, true
}

func (h *Handler) publish(ctx context.Context, e *models.Event) {
	if h.publisher != nil && e != nil {
		h.publisher.PublishAvailability(ctx, e)
	}
}
