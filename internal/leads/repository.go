package leads

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores release-notification sign-ups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a leads repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save records email. It reports whether the address was new.
func (r *Repository) Save(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO leads (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, email)
	if err != nil {
		return false, fmt.Errorf("save lead: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
