package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasticket/backend/internal/events"
	"github.com/fasticket/backend/internal/models"
)

type stubStore struct {
	counts *Counts
	err    error
}

func (s stubStore) EventCounts(context.Context, uuid.UUID) (*Counts, error) {
	return s.counts, s.err
}

func serveStats(store Store, e *models.Event) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/events/:id/stats", func(c *gin.Context) {
		c.Set(events.ContextEvent, e)
		c.Next()
	}, NewHandler(store, nil).GetByEvent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/"+e.ID.String()+"/stats", nil))
	return w
}

func TestGetByEvent(t *testing.T) {
	e := &models.Event{ID: uuid.New(), TotalCapacity: 200, AvailableCapacity: 150, Currency: "USD", Status: models.EventStatusPublished}
	w := serveStats(stubStore{counts: &Counts{ConfirmedBookings: 30, CancelledBookings: 4, TicketsSold: 50, RevenueCents: 125000, EmailsSent: 33}}, e)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Data.BookedCount)
	assert.InDelta(t, 25.0, body.Data.BookedPercentage, 0.001)
	assert.Equal(t, int64(125000), body.Data.RevenueCents)
	assert.Equal(t, 4, body.Data.CancelledBookings)
	assert.Equal(t, 33, body.Data.EmailsSent)
}

func TestGetByEvent_StoreError(t *testing.T) {
	e := &models.Event{ID: uuid.New()}
	w := serveStats(stubStore{err: errors.New("db down")}, e)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
