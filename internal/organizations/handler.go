package organizations

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
	"github.com/fasticket/backend/pkg/utils"
)

// Store is the persistence the organization handlers need.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MemberOrganization, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error)
	FindUserIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.OrganizationMember, error)
	UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role string) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	store  Store
	access *Access
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(store Store, access *Access, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, access: access, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// UpdateOrganizationRequest is the body for PATCH /organizations/:id.
type UpdateOrganizationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AddMemberRequest is the body for POST /organizations/:id/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// UpdateMemberRequest is the body for PATCH /organizations/:id/members/:userId.
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

// generatedSlugAttempts bounds retries when a slug derived from the name collides.
const generatedSlugAttempts = 3

// CreateOrganization handles POST /organizations. Creates org and adds current user as organizer.
func (h *Handler) CreateOrganization(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	explicit := strings.TrimSpace(body.Slug) != ""
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if !explicit {
		slug = utils.Slugify(body.Name)
		if !utils.ValidSlug(slug) {
			suffix, err := utils.RandomString(6)
			if err != nil {
				h.logger.Error("generate slug", zap.Error(err))
				response.Internal(c, "failed to create organization")
				return
			}
			slug = "org-" + strings.ToLower(suffix)
		}
	}
	if !utils.ValidSlug(slug) {
		response.BadRequest(c, "slug must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}

	org := &models.Organization{
		Name:        body.Name,
		Slug:        slug,
		Description: strings.TrimSpace(body.Description),
		CreatedBy:   userID,
	}
	err := h.store.Create(c.Request.Context(), org)
	for attempt := 1; !explicit && errors.Is(err, ErrSlugTaken) && attempt < generatedSlugAttempts; attempt++ {
		suffix, rerr := utils.RandomString(4)
		if rerr != nil {
			break
		}
		org.Slug = utils.SlugWithSuffix(slug, strings.ToLower(suffix))
		err = h.store.Create(c.Request.Context(), org)
	}
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		h.logger.Error("create organization", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// ListMyOrganizations handles GET /organizations. Returns orgs the current user is a member of.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	orgs, err := h.store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list organizations", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// GetOrganization handles GET /organizations/:id.
func (h *Handler) GetOrganization(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	h.writeOrganization(c, func(ctx context.Context) (*models.Organization, error) {
		return h.store.GetByID(ctx, orgID)
	})
}

// GetOrganizationBySlug handles GET /organizations/slug/:slug.
func (h *Handler) GetOrganizationBySlug(c *gin.Context) {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
	h.writeOrganization(c, func(ctx context.Context) (*models.Organization, error) {
		return h.store.GetBySlug(ctx, slug)
	})
}

func (h *Handler) writeOrganization(c *gin.Context, load func(context.Context) (*models.Organization, error)) {
	org, err := load(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("get organization", zap.Error(err))
		response.Internal(c, "failed to load organization")
		return
	}
	response.OK(c, org)
}

// UpdateOrganization handles PATCH /organizations/:id. Requires organizer.
func (h *Handler) UpdateOrganization(c *gin.Context) {
	orgID := c.MustGet(ContextOrganizationID).(uuid.UUID)
	var body UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if len(name) < 1 || len(name) > 255 {
			response.BadRequest(c, "name must be 1-255 characters")
			return
		}
		body.Name = &name
	}
	org, err := h.store.Update(c.Request.Context(), orgID, body.Name, body.Description)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("update organization", zap.Error(err))
		response.Internal(c, "failed to update organization")
		return
	}
	response.OK(c, org)
}

// DeleteOrganization handles DELETE /organizations/:id. Only the creator may delete.
func (h *Handler) DeleteOrganization(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	org, err := h.store.GetByID(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("get organization", zap.Error(err))
		response.Internal(c, "failed to load organization")
		return
	}
	if org.CreatedBy != userID {
		response.Forbidden(c, "only the organization creator can delete it")
		return
	}
	if err := h.store.Delete(c.Request.Context(), orgID); err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("delete organization", zap.Error(err))
		response.Internal(c, "failed to delete organization")
		return
	}
	response.NoContent(c)
}

// ListMembers handles GET /organizations/:id/members. Requires membership.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID := c.MustGet(ContextOrganizationID).(uuid.UUID)
	members, err := h.store.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list members", zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// AddMember handles POST /organizations/:id/members. Requires organizer; the invitee must have a profile.
func (h *Handler) AddMember(c *gin.Context) {
	orgID := c.MustGet(ContextOrganizationID).(uuid.UUID)
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "valid email required")
		return
	}
	if body.Role == "" {
		body.Role = models.OrgRoleMember
	}
	if !models.ValidOrgRole(body.Role) {
		response.BadRequest(c, "role must be organizer or member")
		return
	}
	userID, err := h.store.FindUserIDByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "no user with this email")
			return
		}
		h.logger.Error("find user by email", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	member, err := h.store.AddMember(c.Request.Context(), orgID, userID, body.Role)
	if err != nil {
		if errors.Is(err, ErrMemberExists) {
			response.BadRequest(c, "user is already a member of this organization")
			return
		}
		h.logger.Error("add member", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	response.Created(c, member)
}

// UpdateMemberRole handles PATCH /organizations/:id/members/:userId. Requires organizer.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	orgID := c.MustGet(ContextOrganizationID).(uuid.UUID)
	target, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body UpdateMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil || !models.ValidOrgRole(body.Role) {
		response.BadRequest(c, "role must be organizer or member")
		return
	}
	org, ok := h.loadMutable(c, orgID, target, "cannot change the organization creator's role")
	if !ok {
		return
	}
	if err := h.store.UpdateMemberRole(c.Request.Context(), org.ID, target, body.Role); err != nil {
		h.writeMemberError(c, err, "update member role")
		return
	}
	response.OK(c, gin.H{"user_id": target, "role": body.Role})
}

// RemoveMember handles DELETE /organizations/:id/members/:userId.
// Organizers may remove anyone but the creator; any member may remove themself.
func (h *Handler) RemoveMember(c *gin.Context) {
	orgID := c.MustGet(ContextOrganizationID).(uuid.UUID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	target, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if target != userID && OrgRole(c) != models.OrgRoleOrganizer {
		response.Forbidden(c, "organizer role required")
		return
	}
	org, ok := h.loadMutable(c, orgID, target, "cannot remove the organization creator")
	if !ok {
		return
	}
	if err := h.store.RemoveMember(c.Request.Context(), org.ID, target); err != nil {
		h.writeMemberError(c, err, "remove member")
		return
	}
	response.NoContent(c)
}

func (h *Handler) loadMutable(c *gin.Context, orgID, target uuid.UUID, creatorMsg string) (*models.Organization, bool) {
	org, err := h.store.GetByID(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return nil, false
		}
		h.logger.Error("get organization", zap.Error(err))
		response.Internal(c, "failed to load organization")
		return nil, false
	}
	if err := CheckMemberMutable(org, target); err != nil {
		response.Forbidden(c, creatorMsg)
		return nil, false
	}
	return org, true
}

func (h *Handler) writeMemberError(c *gin.Context, err error, op string) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "member not found")
		return
	}
	h.logger.Error(op, zap.Error(err))
	response.Internal(c, "failed to "+op)
}
