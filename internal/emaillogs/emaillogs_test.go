package emaillogs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fasticket/backend/internal/events"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, el *models.EmailLog) error {
	args := m.Called(ctx, el)
	if args.Error(0) == nil {
		el.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *mockStore) Recipient(ctx context.Context, bookingID uuid.UUID) (*Recipient, error) {
	args := m.Called(ctx, bookingID)
	rc, _ := args.Get(0).(*Recipient)
	return rc, args.Error(1)
}

func (m *mockStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	args := m.Called(ctx, eventID)
	logs, _ := args.Get(0).([]*models.EmailLog)
	return logs, args.Error(1)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error {
	return m.Called(ctx, payload).Error(0)
}

func recipient(eventID uuid.UUID) *Recipient {
	return &Recipient{BookingID: uuid.New(), EventID: eventID, Email: "ada@example.com", EventTitle: "GopherCon"}
}

func TestNotifier_BookingConfirmedQueuesJob(t *testing.T) {
	store, q := new(mockStore), new(mockQueue)
	rc := recipient(uuid.New())
	store.On("Recipient", mock.Anything, rc.BookingID).Return(rc, nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(el *models.EmailLog) bool {
		return el.EmailType == models.EmailTypeBookingConfirmation && el.RecipientEmail == "ada@example.com" &&
			*el.BookingID == rc.BookingID && *el.EventID == rc.EventID
	})).Return(nil)
	q.On("EnqueueEmail", mock.Anything, mock.MatchedBy(func(p queue.EmailPayload) bool {
		return p.BookingID == rc.BookingID && p.EmailLogID != uuid.Nil
	})).Return(nil)

	require.NoError(t, NewNotifier(store, q, nil).BookingConfirmed(context.Background(), rc.BookingID))
	store.AssertExpectations(t)
	q.AssertExpectations(t)
}

func TestNotifier_EnqueueFailureMarksFailed(t *testing.T) {
	store, q := new(mockStore), new(mockQueue)
	rc := recipient(uuid.New())
	store.On("Recipient", mock.Anything, rc.BookingID).Return(rc, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	store.On("MarkFailed", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	q.On("EnqueueEmail", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	err := NewNotifier(store, q, nil).BookingCancelled(context.Background(), rc.BookingID, models.EmailTypeEventCancelled)
	require.Error(t, err)
	store.AssertExpectations(t)
}

func TestNotifier_NoEmail(t *testing.T) {
	store, q := new(mockStore), new(mockQueue)
	rc := recipient(uuid.New())
	rc.Email = ""
	store.On("Recipient", mock.Anything, rc.BookingID).Return(rc, nil)

	err := NewNotifier(store, q, nil).BookingConfirmed(context.Background(), rc.BookingID)
	assert.ErrorIs(t, err, ErrNoRecipient)
	q.AssertNotCalled(t, "EnqueueEmail", mock.Anything, mock.Anything)
}

func newTestRouter(store *mockStore, q *mockQueue, e *models.Event) *gin.Engine {
	h := NewHandler(store, NewNotifier(store, q, nil), nil)
	r := gin.New()
	withEvent := func(c *gin.Context) {
		c.Set(events.ContextEvent, e)
		c.Next()
	}
	r.GET("/api/events/:id/emails", withEvent, h.ListByEvent)
	r.POST("/api/events/:id/emails/resend", withEvent, h.Resend)
	return r
}

func post(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_ListByEvent(t *testing.T) {
	store := new(mockStore)
	e := &models.Event{ID: uuid.New()}
	store.On("ListByEvent", mock.Anything, e.ID).Return([]*models.EmailLog{{ID: uuid.New(), Status: models.EmailLogStatusSent}}, nil)

	w := httptest.NewRecorder()
	newTestRouter(store, new(mockQueue), e).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events/"+e.ID.String()+"/emails", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"sent"`)
}

func TestHandler_Resend(t *testing.T) {
	store, q := new(mockStore), new(mockQueue)
	e := &models.Event{ID: uuid.New()}
	rc := recipient(e.ID)
	store.On("Recipient", mock.Anything, rc.BookingID).Return(rc, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	q.On("EnqueueEmail", mock.Anything, mock.Anything).Return(nil)

	w := post(newTestRouter(store, q, e), "/api/events/"+e.ID.String()+"/emails/resend",
		map[string]string{"booking_id": rc.BookingID.String()})

	assert.Equal(t, http.StatusOK, w.Code)
	q.AssertExpectations(t)
}

func TestHandler_ResendRejectsOtherEventsBooking(t *testing.T) {
	store, q := new(mockStore), new(mockQueue)
	e := &models.Event{ID: uuid.New()}
	rc := recipient(uuid.New())
	store.On("Recipient", mock.Anything, rc.BookingID).Return(rc, nil)

	w := post(newTestRouter(store, q, e), "/api/events/"+e.ID.String()+"/emails/resend",
		map[string]string{"booking_id": rc.BookingID.String()})

	assert.Equal(t, http.StatusNotFound, w.Code)
	q.AssertNotCalled(t, "EnqueueEmail", mock.Anything, mock.Anything)
}

func TestHandler_ResendValidation(t *testing.T) {
	r := newTestRouter(new(mockStore), new(mockQueue), &models.Event{ID: uuid.New()})

	w := post(r, "/api/events/x/emails/resend", map[string]string{"booking_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/events/x/emails/resend", map[string]string{"booking_id": uuid.NewString(), "email_type": "newsletter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
