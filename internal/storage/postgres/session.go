package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coffee-shop/internal/domain/auth"
)

const (
	getSessionByHashSQL = `SELECT user_id, role, key_hash, expires_at
		FROM sessions WHERE key_hash = $1`

	createSessionSQL = `INSERT INTO sessions (key_hash, user_id, role, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			role = EXCLUDED.role,
			expires_at = EXCLUDED.expires_at`
)

var _ auth.Repository = (*SessionRepository)(nil)

// SessionRepository provides session lookups backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindByHash looks up a session by its HMAC-SHA256 token hash.
func (r *SessionRepository) FindByHash(ctx context.Context, hash string) (*auth.Session, error) {
	rows, err := r.pool.Query(ctx, getSessionByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding session by hash: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.Session, error) {
		var (
			s    auth.Session
			role string
		)
		err := row.Scan(&s.UserID, &role, &s.KeyHash, &s.ExpiresAt)
		s.Role = auth.Role(role)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding session by hash: %w", err)
	}
	return &s, nil
}

// Create stores a session, replacing any row with the same hash.
func (r *SessionRepository) Create(ctx context.Context, s auth.Session) error {
	if _, err := r.pool.Exec(ctx, createSessionSQL, s.KeyHash, s.UserID, string(s.Role), s.ExpiresAt); err != nil {
		return fmt.Errorf("creating session for user %q: %w", s.UserID, err)
	}
	return nil
}
