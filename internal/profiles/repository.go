package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasticket/backend/internal/models"
	"github.com/fasticket/backend/pkg/database"
)

var ErrNotFound = errors.New("profile not found")

// Repository handles profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profiles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert ensures a profile row exists for the identity and keeps its email in sync with the token.
// An empty email leaves the stored one untouched.
func (r *Repository) Upsert(ctx context.Context, id uuid.UUID, email string) (*models.Profile, error) {
	const q = `INSERT INTO profiles (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email = '' THEN profiles.email ELSE EXCLUDED.email END,
			updated_at = CASE WHEN EXCLUDED.email = '' OR EXCLUDED.email = profiles.email THEN profiles.updated_at ELSE NOW() END
		RETURNING id, email, full_name, avatar_url, created_at, updated_at`
	var p models.Profile
	err := r.pool.QueryRow(ctx, q, id, email).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a profile.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	const q = `SELECT id, email, full_name, avatar_url, created_at, updated_at FROM profiles WHERE id = $1`
	var p models.Profile
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update sets full name and/or avatar URL; nil fields are left unchanged.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fullName, avatarURL *string) (*models.Profile, error) {
	const q = `UPDATE profiles SET
			full_name = COALESCE($2, full_name),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, full_name, avatar_url, created_at, updated_at`
	var p models.Profile
	err := r.pool.QueryRow(ctx, q, id, fullName, avatarURL).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
