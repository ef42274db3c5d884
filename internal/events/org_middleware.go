package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/internal/organizations"
	"github.com/fasticket/backend/pkg/response"
)

// ContextEvent is the context key for the event loaded by RequireEventOrganizer.
const ContextEvent = "event"

// EventGetter loads a single event.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// RequireEventOrganizer loads the event named by the :id param and requires the caller to be an organizer of
// the owning organization. Call after JWT.
func RequireEventOrganizer(events EventGetter, access *organizations.Access, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := events.GetByID(c.Request.Context(), eventID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				response.NotFound(c, "event not found")
			} else {
				logger.Error("load event", zap.String("event_id", eventID.String()), zap.Error(err))
				response.Internal(c, "failed to load event")
			}
			c.Abort()
			return
		}
		if !access.Authorize(c, e.OrganizationID, true) {
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// EventFromContext returns the event stored by RequireEventOrganizer.
func EventFromContext(c *gin.Context) *models.Event {
	e, _ := c.MustGet(ContextEvent).(*models.Event)
	return e
}
