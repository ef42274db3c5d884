package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant that owns events.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Organization member roles.
const (
	OrgRoleOrganizer = "organizer"
	OrgRoleMember    = "member"
)

// ValidOrgRole reports whether role is one of the membership roles.
func ValidOrgRole(role string) bool {
	return role == OrgRoleOrganizer || role == OrgRoleMember
}

// OrganizationMember links a user to an organization with a role.
type OrganizationMember struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemberOrganization is an organization as seen by one of its members.
type MemberOrganization struct {
	Organization
	Role string `json:"role"`
}
