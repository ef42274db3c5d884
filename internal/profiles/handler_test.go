package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fasticket/backend/internal/middleware"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upsert(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error) {
	args := m.Called(ctx, id, email)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id uuid.UUID, fullName, avatarURL *string) (*models.Profile, error) {
	args := m.Called(ctx, id, fullName, avatarURL)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

type stubUploader struct {
	bucket, key string
}

func (s *stubUploader) AvatarsBucket() string { return "avatars-bucket" }

func (s *stubUploader) PresignUpload(_ context.Context, bucket, key, _ string) (*storage.PresignedUpload, error) {
	s.bucket, s.key = bucket, key
	return &storage.PresignedUpload{UploadURL: "https://signed", PublicURL: "https://public/" + key, Key: key, ExpiresAt: time.Now()}, nil
}

func newRouter(store Store, uploader AvatarUploader, userID uuid.UUID) *gin.Engine {
	h := NewHandler(store, uploader, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserEmail, "ada@example.com")
		c.Next()
	})
	r.GET("/api/profile", h.Get)
	r.PATCH("/api/profile", h.Update)
	r.POST("/api/profile/avatar", h.UploadAvatar)
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGet_UpsertsFromClaims(t *testing.T) {
	userID := uuid.New()
	store := new(mockStore)
	store.On("Upsert", mock.Anything, userID, "ada@example.com").
		Return(&models.Profile{ID: userID, Email: "ada@example.com"}, nil).Once()

	w := do(newRouter(store, nil, userID), http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestUpdate(t *testing.T) {
	userID := uuid.New()
	store := new(mockStore)
	store.On("Upsert", mock.Anything, userID, "ada@example.com").Return(&models.Profile{ID: userID}, nil)
	store.On("Update", mock.Anything, userID, mock.MatchedBy(func(s *string) bool { return s != nil && *s == "Ada Lovelace" }), (*string)(nil)).
		Return(&models.Profile{ID: userID, FullName: "Ada Lovelace"}, nil).Once()

	r := newRouter(store, nil, userID)
	w := do(r, http.MethodPatch, "/api/profile", map[string]string{"full_name": "  Ada Lovelace "})
	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)

	w = do(r, http.MethodPatch, "/api/profile", map[string]string{"avatar_url": "http://insecure"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAvatar(t *testing.T) {
	userID := uuid.New()
	uploader := &stubUploader{}
	r := newRouter(new(mockStore), uploader, userID)

	w := do(r, http.MethodPost, "/api/profile/avatar", map[string]string{"content_type": "image/png", "filename": "me.png"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "avatars-bucket", uploader.bucket)
	assert.True(t, strings.HasPrefix(uploader.key, "avatars/"+userID.String()+"/"))
	assert.True(t, strings.HasSuffix(uploader.key, ".png"))

	w = do(r, http.MethodPost, "/api/profile/avatar", map[string]string{"content_type": "application/pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(newRouter(new(mockStore), nil, userID), http.MethodPost, "/api/profile/avatar", map[string]string{"content_type": "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
