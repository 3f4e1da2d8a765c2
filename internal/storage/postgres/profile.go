package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coffee-shop/internal/domain/profile"
)

const upsertProfileNameSQL = `INSERT INTO profiles (user_id, display_name, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = now()`

var _ profile.Repository = (*ProfileRepository)(nil)

// ProfileRepository implements profile.Repository backed by PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a ProfileRepository that uses the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// UpsertName stores the display name, creating the profile on first write.
func (r *ProfileRepository) UpsertName(ctx context.Context, userID, name string) error {
	if _, err := r.pool.Exec(ctx, upsertProfileNameSQL, userID, name); err != nil {
		return fmt.Errorf("updating profile %q: %w", userID, err)
	}
	return nil
}
