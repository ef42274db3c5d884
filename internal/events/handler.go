package events

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/middleware"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/internal/organizations"
	"github.com/fasticket/backend/pkg/response"
	"github.com/fasticket/backend/pkg/storage"
)

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Store is the persistence the event handlers need.
type Store interface {
	EventGetter
	Create(ctx context.Context, e *models.Event) error
	List(ctx context.Context, f ListFilter) ([]models.Event, error)
	Update(ctx context.Context, id uuid.UUID, ch Changes) (*models.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next models.EventStatus) (*models.Event, []uuid.UUID, error)
	SetCoverImage(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier queues attendee emails.
type Notifier interface {
	BookingCancelled(ctx context.Context, bookingID uuid.UUID, emailType string) error
}

// AvailabilityPublisher pushes capacity changes to live clients.
type AvailabilityPublisher interface {
	PublishAvailability(ctx context.Context, e *models.Event)
}

// ImageUploader presigns direct uploads of event images.
type ImageUploader interface {
	EventImagesBucket() string
	PresignUpload(ctx context.Context, bucket, key, contentType string) (*storage.PresignedUpload, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	KeyFromPublicURL(bucket, url string) string
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store     Store
	access    *organizations.Access
	notifier  Notifier
	publisher AvailabilityPublisher
	uploader  ImageUploader
	logger    *zap.Logger
}

// NewHandler creates an event handler. notifier, publisher and uploader may be nil.
func NewHandler(store Store, access *organizations.Access, notifier Notifier, publisher AvailabilityPublisher, uploader ImageUploader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, access: access, notifier: notifier, publisher: publisher, uploader: uploader, logger: logger}
}

// CreateRequest is the body for POST /organizations/:id/events.
type CreateRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Location         string `json:"location"`
	StartDate        string `json:"start_date" binding:"required"`
	EndDate          string `json:"end_date" binding:"required"`
	TotalCapacity    int    `json:"total_capacity" binding:"required"`
	TicketPriceCents int    `json:"ticket_price_cents"`
	Currency         string `json:"currency"`
	IsFree           bool   `json:"is_free"`
	Publish          bool   `json:"publish"`
}

// UpdateRequest is the body for PATCH /events/:id.
type UpdateRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Location         *string `json:"location"`
	StartDate        *string `json:"start_date"`
	EndDate          *string `json:"end_date"`
	TotalCapacity    *int    `json:"total_capacity"`
	TicketPriceCents *int    `json:"ticket_price_cents"`
	Currency         *string `json:"currency"`
	IsFree           *bool   `json:"is_free"`
}

// StatusRequest is the body for PATCH /events/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CoverRequest is the body for POST /events/:id/cover.
type CoverRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	Filename    string `json:"filename"`
}

// Create handles POST /organizations/:id/events. Requires organizer.
func (h *Handler) Create(c *gin.Context) {
	orgID := c.MustGet(organizations.ContextOrganizationID).(uuid.UUID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 255 {
		response.BadRequest(c, "title must be 1-255 characters")
		return
	}
	start, err := parseTime(req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	end, err := parseTime(req.EndDate)
	if err != nil {
		response.BadRequest(c, "invalid end_date")
		return
	}
	if end.Before(start) {
		response.BadRequest(c, "end_date must not be before start_date")
		return
	}
	if req.TotalCapacity < 1 {
		response.BadRequest(c, "total_capacity must be at least 1")
		return
	}
	if req.TicketPriceCents < 0 {
		response.BadRequest(c, "ticket_price_cents must not be negative")
		return
	}

	e := &models.Event{
		OrganizationID:   orgID,
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		StartDate:        start,
		EndDate:          end,
		TotalCapacity:    req.TotalCapacity,
		TicketPriceCents: req.TicketPriceCents,
		Currency:         strings.ToUpper(req.Currency),
		IsFree:           req.IsFree || req.TicketPriceCents == 0,
		Status:           models.EventStatusDraft,
		CreatedBy:        userID,
	}
	if req.Publish {
		e.Status = models.EventStatusPublished
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, models.NewEventView(e))
}

// List handles GET /events: published events with optional q, organization_id, upcoming, limit, offset.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{
		Query:    c.Query("q"),
		Upcoming: c.Query("upcoming") == "1" || c.Query("upcoming") == "true",
	}
	if v := c.Query("organization_id"); v != "" {
		orgID, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		f.OrganizationID = &orgID
	}
	if !parsePage(c, &f) {
		return
	}
	h.writeList(c, f)
}

// ListForOrganization handles GET /organizations/:id/events. Members also see drafts and cancelled events.
func (h *Handler) ListForOrganization(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	f := ListFilter{OrganizationID: &orgID, Query: c.Query("q"), Upcoming: c.Query("upcoming") == "1"}
	if !parsePage(c, &f) {
		return
	}
	if userID, ok := middleware.UserID(c); ok {
		member, err := h.access.IsMember(c.Request.Context(), orgID, userID)
		if err != nil {
			h.logger.Error("org membership", zap.Error(err))
			response.Internal(c, "failed to list events")
			return
		}
		f.IncludeUnpublished = member
	}
	h.writeList(c, f)
}

func parsePage(c *gin.Context, f *ListFilter) bool {
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return false
		}
		f.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid offset")
			return false
		}
		f.Offset = n
	}
	f.Normalize()
	return true
}

func (h *Handler) writeList(c *gin.Context, f ListFilter) {
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	views := make([]models.EventView, 0, len(list))
	for i := range list {
		views = append(views, models.NewEventView(&list[i]))
	}
	response.OK(c, gin.H{"events": views, "limit": f.Limit, "offset": f.Offset})
}

// GetByID handles GET /events/:id. Unpublished events are visible only to members of the owning organization.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("get event", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	if e.Status != models.EventStatusPublished {
		visible := false
		if userID, ok := middleware.UserID(c); ok {
			visible, err = h.access.IsMember(c.Request.Context(), e.OrganizationID, userID)
			if err != nil {
				h.logger.Error("org membership", zap.Error(err))
				response.Internal(c, "failed to load event")
				return
			}
		}
		if !visible {
			response.NotFound(c, "event not found")
			return
		}
	}
	response.OK(c, models.NewEventView(e))
}

// Update handles PATCH /events/:id. Requires organizer.
func (h *Handler) Update(c *gin.Context) {
	e := EventFromContext(c)
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	ch := Changes{
		Title:            req.Title,
		Description:      req.Description,
		Location:         req.Location,
		TotalCapacity:    req.TotalCapacity,
		TicketPriceCents: req.TicketPriceCents,
		Currency:         req.Currency,
		IsFree:           req.IsFree,
	}
	if ch.Title != nil {
		title := strings.TrimSpace(*ch.Title)
		if title == "" || len(title) > 255 {
			response.BadRequest(c, "title must be 1-255 characters")
			return
		}
		ch.Title = &title
	}
	if req.StartDate != nil {
		t, err := parseTime(*req.StartDate)
		if err != nil {
			response.BadRequest(c, "invalid start_date")
			return
		}
		ch.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseTime(*req.EndDate)
		if err != nil {
			response.BadRequest(c, "invalid end_date")
			return
		}
		ch.EndDate = &t
	}
	if ch.TotalCapacity != nil && *ch.TotalCapacity < 1 {
		response.BadRequest(c, "total_capacity must be at least 1")
		return
	}
	if ch.TicketPriceCents != nil && *ch.TicketPriceCents < 0 {
		response.BadRequest(c, "ticket_price_cents must not be negative")
		return
	}

	updated, err := h.store.Update(c.Request.Context(), e.ID, ch)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "event not found")
		case errors.Is(err, ErrCapacityBelowBooked):
			response.BadRequest(c, "total_capacity cannot be below the number of booked tickets")
		case errors.Is(err, ErrInvalidDates):
			response.BadRequest(c, "end_date must not be before start_date")
		default:
			h.logger.Error("update event", zap.Error(err))
			response.Internal(c, "failed to update event")
		}
		return
	}
	if updated.AvailableCapacity != e.AvailableCapacity || updated.TotalCapacity != e.TotalCapacity {
		h.publish(c.Request.Context(), updated)
	}
	response.OK(c, models.NewEventView(updated))
}

// UpdateStatus handles PATCH /events/:id/status. Requires organizer.
func (h *Handler) UpdateStatus(c *gin.Context) {
	e := EventFromContext(c)
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	next := models.EventStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !next.Valid() {
		response.BadRequest(c, "status must be draft, published or cancelled")
		return
	}
	if !e.Status.CanTransitionTo(next) {
		response.BadRequest(c, "cannot change status from "+string(e.Status)+" to "+string(next))
		return
	}
	updated, cancelled, err := h.store.UpdateStatus(c.Request.Context(), e.ID, next)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "event not found")
		case errors.Is(err, ErrInvalidTransition):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("update event status", zap.Error(err))
			response.Internal(c, "failed to update event status")
		}
		return
	}
	if h.notifier != nil {
		for _, bookingID := range cancelled {
			if err := h.notifier.BookingCancelled(c.Request.Context(), bookingID, models.EmailTypeEventCancelled); err != nil {
				h.logger.Warn("queue cancellation email", zap.String("booking_id", bookingID.String()), zap.Error(err))
			}
		}
	}
	h.publish(c.Request.Context(), updated)
	h.logger.Info("event status changed",
		zap.String("event_id", e.ID.String()),
		zap.String("from", string(e.Status)),
		zap.String("to", string(next)),
		zap.Int("bookings_cancelled", len(cancelled)),
	)
	response.OK(c, gin.H{"event": models.NewEventView(updated), "bookings_cancelled": len(cancelled)})
}

// Delete handles DELETE /events/:id. Requires organizer.
func (h *Handler) Delete(c *gin.Context) {
	e := EventFromContext(c)
	if err := h.store.Delete(c.Request.Context(), e.ID); err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("delete event", zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	if h.uploader != nil && e.CoverImageURL != "" {
		h.deleteCover(c.Request.Context(), e.CoverImageURL)
	}
	response.NoContent(c)
}

// UploadCover handles POST /events/:id/cover. Returns a presigned PUT URL and records the public URL.
func (h *Handler) UploadCover(c *gin.Context) {
	if h.uploader == nil {
		response.ServiceUnavailable(c, "image uploads are not configured")
		return
	}
	e := EventFromContext(c)
	var req CoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content_type required")
		return
	}
	ext := storage.ImageExtension(req.ContentType)
	if ext == "" {
		response.BadRequest(c, "content_type must be image/jpeg, image/png, image/webp or image/gif")
		return
	}
	bucket := h.uploader.EventImagesBucket()
	upload, err := h.uploader.PresignUpload(c.Request.Context(), bucket, storage.CoverKey(e.ID, ext), req.ContentType)
	if err != nil {
		h.logger.Error("presign cover upload", zap.Error(err))
		response.Internal(c, "failed to prepare upload")
		return
	}
	if err := h.store.SetCoverImage(c.Request.Context(), e.ID, upload.PublicURL); err != nil {
		h.logger.Error("set cover image", zap.Error(err))
		response.Internal(c, "failed to prepare upload")
		return
	}
	if e.CoverImageURL != "" {
		h.deleteCover(c.Request.Context(), e.CoverImageURL)
	}
	response.OK(c, upload)
}

func (h *Handler) deleteCover(ctx context.Context, url string) {
	bucket := h.uploader.EventImagesBucket()
	key := h.uploader.KeyFromPublicURL(bucket, url)
	if key == "" {
		return
	}
	if err := h.uploader.DeleteObject(ctx, bucket, key); err != nil {
		h.logger.Warn("delete old cover", zap.String("key", key), zap.Error(err))
	}
}

func (h *Handler) publish(ctx context.Context, e *models.Event) {
	if h.publisher != nil {
		h.publisher.PublishAvailability(ctx, e)
	}
}
