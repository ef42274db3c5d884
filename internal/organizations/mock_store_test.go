package organizations

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/fasticket/backend/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	if args.Error(0) == nil {
		org.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	org, _ := args.Get(0).(*models.Organization)
	return org, args.Error(1)
}

func (m *mockStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	args := m.Called(ctx, slug)
	org, _ := args.Get(0).(*models.Organization)
	return org, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Organization, error) {
	args := m.Called(ctx, id, name, description)
	org, _ := args.Get(0).(*models.Organization)
	return org, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MemberOrganization, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]models.MemberOrganization)
	return list, args.Error(1)
}

func (m *mockStore) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	args := m.Called(ctx, orgID)
	list, _ := args.Get(0).([]Member)
	return list, args.Error(1)
}

func (m *mockStore) FindUserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockStore) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) (*models.OrganizationMember, error) {
	args := m.Called(ctx, orgID, userID, role)
	member, _ := args.Get(0).(*models.OrganizationMember)
	return member, args.Error(1)
}

func (m *mockStore) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	return m.Called(ctx, orgID, userID, role).Error(0)
}

func (m *mockStore) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	return m.Called(ctx, orgID, userID).Error(0)
}

func (m *mockStore) MemberRole(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, orgID, userID)
	return args.String(0), args.Error(1)
}
