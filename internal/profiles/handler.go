package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/middleware"
	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/response"
	"github.com/fasticket/backend/pkg/storage"
)

// Store is the persistence the profile handlers need.
type Store interface {
	Upsert(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error)
	Update(ctx context.Context, id uuid.UUID, fullName, avatarURL *string) (*models.Profile, error)
}

// AvatarUploader presigns direct avatar uploads.
type AvatarUploader interface {
	AvatarsBucket() string
	PresignUpload(ctx context.Context, bucket, key, contentType string) (*storage.PresignedUpload, error)
}

// Handler handles profile HTTP endpoints.
type Handler struct {
	store    Store
	uploader AvatarUploader
	logger   *zap.Logger
}

// NewHandler creates a profile handler. uploader may be nil when S3 is not configured.
func NewHandler(store Store, uploader AvatarUploader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, uploader: uploader, logger: logger}
}

// UpdateRequest is the body for PATCH /profile.
type UpdateRequest struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// AvatarRequest is the body for POST /profile/avatar.
type AvatarRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	Filename    string `json:"filename"`
}

// Get handles GET /profile. The row is created from the token claims on first access.
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.ensure(c)
	if !ok {
		return
	}
	response.OK(c, p)
}

// Update handles PATCH /profile.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if len(name) > 255 {
			response.BadRequest(c, "full_name must be at most 255 characters")
			return
		}
		req.FullName = &name
	}
	if req.AvatarURL != nil {
		u := strings.TrimSpace(*req.AvatarURL)
		if u != "" && !strings.HasPrefix(u, "https://") {
			response.BadRequest(c, "avatar_url must be an https URL")
			return
		}
		req.AvatarURL = &u
	}
	if _, ok := h.ensure(c); !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.store.Update(c.Request.Context(), userID, req.FullName, req.AvatarURL)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "profile not found")
			return
		}
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, p)
}

// UploadAvatar handles POST /profile/avatar. Returns a presigned PUT URL; the client saves public_url
// with PATCH /profile once the upload succeeds.
func (h *Handler) UploadAvatar(c *gin.Context) {
	if h.uploader == nil {
		response.ServiceUnavailable(c, "image uploads are not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "content_type required")
		return
	}
	ext := storage.ImageExtension(req.ContentType)
	if ext == "" {
		response.BadRequest(c, "content_type must be image/jpeg, image/png, image/webp or image/gif")
		return
	}
	upload, err := h.uploader.PresignUpload(c.Request.Context(), h.uploader.AvatarsBucket(), storage.AvatarKey(userID, ext), req.ContentType)
	if err != nil {
		h.logger.Error("presign avatar upload", zap.Error(err))
		response.Internal(c, "failed to prepare upload")
		return
	}
	response.OK(c, upload)
}

func (h *Handler) ensure(c *gin.Context) (*models.Profile, bool) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	email := c.GetString(middleware.ContextUserEmail)
	p, err := h.store.Upsert(c.Request.Context(), userID, email)
	if err != nil {
		h.logger.Error("upsert profile", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load profile")
		return nil, false
	}
	return p, true
}
