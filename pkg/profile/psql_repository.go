package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository against the profiles table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (Profile, error) {
	const q = `
		SELECT user_id, email, is_admin, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	var p Profile
	err := r.pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &p.Email, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, params UpsertParams) error {
	const q = `
		INSERT INTO profiles (user_id, email, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id)
		DO UPDATE SET email = EXCLUDED.email, is_admin = EXCLUDED.is_admin, updated_at = now()`

	if _, err := r.pool.Exec(ctx, q, params.UserID, params.Email, params.IsAdmin); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	const q = `DELETE FROM profiles WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
