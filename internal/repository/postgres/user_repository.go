package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

// UserRepository provides user persistence in Postgres.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

// Upsert inserts or updates a user by ID. An empty language code keeps the stored one.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	const q = `
	INSERT INTO users (id, username, first_name, last_name, language_code, is_premium, created_at, updated_at)
	VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))
	ON CONFLICT (id) DO UPDATE SET
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		language_code = COALESCE(NULLIF(EXCLUDED.language_code, ''), users.language_code),
		is_premium = EXCLUDED.is_premium,
		updated_at = now();
`
	_, err := r.db.ExecContext(ctx, q,
		u.ID,
		u.Username,
		u.FirstName,
		u.LastName,
		u.LanguageCode,
		u.IsPremium,
		nullableTime(u.CreatedAt),
		nullableTime(u.UpdatedAt),
	)
	return err
}

// GetByID returns a user by Telegram ID, or nil when unknown.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT id, COALESCE(username, ''), first_name, last_name, language_code, is_premium, created_at, updated_at FROM users WHERE id=$1`
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode, &u.IsPremium, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
