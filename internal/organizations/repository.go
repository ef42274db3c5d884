package organizations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrSlugTaken        = errors.New("organization slug already taken")
	ErrMemberExists     = errors.New("user is already a member")
	ErrCreatorImmutable = errors.New("organization creator cannot be modified")
)

// Repository handles organization and organization_members persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, slug, description, created_by, created_at, updated_at`

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Create inserts the organization and its creator's organizer membership in one transaction.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `INSERT INTO organizations (name, slug, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, org.Name, org.Slug, org.Description, org.CreatedBy).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	const qm = `INSERT INTO organization_members (organization_id, user_id, role) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, qm, org.ID, org.CreatedBy, models.OrgRoleOrganizer); err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}
	return tx.Commit(ctx)
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	return scanOrganization(r.pool.QueryRow(ctx, q, id))
}

// GetBySlug returns an organization by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organizations WHERE slug = $1`
	return scanOrganization(r.pool.QueryRow(ctx, q, slug))
}

// Update sets name and/or description; nil fields are left unchanged.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Organization, error) {
	q := `UPDATE organizations SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orgColumns
	return scanOrganization(r.pool.QueryRow(ctx, q, id, name, description))
}

// Delete removes an organization; events, bookings and memberships cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns organizations the user is a member of, with the user's role.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MemberOrganization, error) {
	const q = `SELECT o.id, o.name, o.slug, o.description, o.created_by, o.created_at, o.updated_at, m.role
		FROM organizations o
		INNER JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.MemberOrganization{}
	for rows.Next() {
		var o models.MemberOrganization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.Role); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// MemberRole returns the user's role in the organization, or "" if not a member.
func (r *Repository) MemberRole(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	const q = `SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2`
	var role string
	err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&role)
	if err != nil {
		if database.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return role, nil
}

// Member represents an organization member with profile details (for GET /organizations/:id/members).
type Member struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Role      string    `json:"role"`
	IsCreator bool      `json:"is_creator"`
	AddedAt   time.Time `json:"added_at"`
}

// ListMembers returns members of an organization. Members without a profile row yet get empty details.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT m.id, m.user_id, COALESCE(p.email, ''), COALESCE(p.full_name, ''), COALESCE(p.avatar_url, ''),
			m.role, m.user_id = o.created_by, m.created_at
		FROM organization_members m
		INNER JOIN organizations o ON o.id = m.organization_id
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.AvatarURL, &m.Role, &m.IsCreator, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// FindUserIDByEmail resolves a profile by email, case-insensitively.
func (r *Repository) FindUserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	const q = `SELECT id FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, strings.TrimSpace(email)).Scan(&id)
	if err != nil {
		if database.IsNoRows(err) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// AddMember inserts a membership row. An existing row yields ErrMemberExists.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.OrganizationMember, error) {
	const q = `INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, user_id, role, created_at, updated_at`
	var m models.OrganizationMember
	err := r.pool.QueryRow(ctx, q, orgID, userID, role).
		Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrMemberExists
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return &m, nil
}

// UpdateMemberRole changes a member's role. The creator's row is never matched.
func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	const q = `UPDATE organization_members m SET role = $3, updated_at = NOW()
		FROM organizations o
		WHERE o.id = m.organization_id AND m.organization_id = $1 AND m.user_id = $2 AND o.created_by <> $2`
	tag, err := r.pool.Exec(ctx, q, orgID, userID, role)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveMember deletes a membership row. The creator's row is never matched.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	const q = `DELETE FROM organization_members m
		USING organizations o
		WHERE o.id = m.organization_id AND m.organization_id = $1 AND m.user_id = $2 AND o.created_by <> $2`
	tag, err := r.pool.Exec(ctx, q, orgID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
