package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/pkg/database"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `user_id, first_name, last_name, email, password, role, reset_token, reset_token_expires, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Role,
		&u.ResetToken, &u.ResetTokenExpires, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
}

// GetByEmail returns a user by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// Create inserts a new user. Returns models.ErrEmailTaken when the email exists.
func (r *Repository) Create(ctx context.Context, firstName, lastName, email, passwordHash string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (first_name, last_name, email, password, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, firstName, lastName, email, passwordHash, string(role)))
	if database.IsUniqueViolation(err) {
		return nil, models.ErrEmailTaken
	}
	return u, err
}

// SetResetToken stores a password reset token valid until expires.
func (r *Repository) SetResetToken(ctx context.Context, userID int64, token string, expires time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token = $2, reset_token_expires = $3 WHERE user_id = $1`,
		userID, token, expires)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ResetPassword replaces the password of the user holding an unexpired token and clears the token.
// Returns models.ErrNotFound for unknown or expired tokens.
func (r *Repository) ResetPassword(ctx context.Context, token, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password = $2, reset_token = NULL, reset_token_expires = NULL
		 WHERE reset_token = $1 AND reset_token_expires > NOW()`,
		token, passwordHash)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
