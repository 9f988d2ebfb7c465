package participants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/pkg/database"
)

// Repository handles session participant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `participant_id, session_id, name, remaining_votes, is_admin, is_moderator, joined_at`

func scan(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.Name, &p.RemainingVotes, &p.IsAdmin, &p.IsModerator, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Add joins name to an active session with the given vote allowance.
// Returns models.ErrNotFound when the session is missing or ended and
// models.ErrNameTaken when the name is already used in the session.
func (r *Repository) Add(ctx context.Context, sessionID int64, name string, votes int) (*models.Participant, error) {
	const q = `INSERT INTO session_participants (session_id, name, remaining_votes)
		SELECT session_id, $2::text, $3::int FROM meetupqa WHERE session_id = $1 AND is_active = TRUE
		RETURNING ` + columns
	p, err := scan(r.pool.QueryRow(ctx, q, sessionID, name, votes))
	if database.IsUniqueViolation(err) {
		return nil, models.ErrNameTaken
	}
	return p, err
}

// GetByName returns the participant called name in the session.
func (r *Repository) GetByName(ctx context.Context, sessionID int64, name string) (*models.Participant, error) {
	return scan(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM session_participants WHERE session_id = $1 AND name = $2`, sessionID, name))
}

// GetByID returns a participant of the session by ID.
func (r *Repository) GetByID(ctx context.Context, sessionID, participantID int64) (*models.Participant, error) {
	return scan(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM session_participants WHERE session_id = $1 AND participant_id = $2`, sessionID, participantID))
}

// SetModerator grants or revokes moderator rights.
func (r *Repository) SetModerator(ctx context.Context, sessionID, participantID int64, isModerator bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session_participants SET is_moderator = $3 WHERE session_id = $1 AND participant_id = $2`,
		sessionID, participantID, isModerator)
	if err != nil {
		return fmt.Errorf("set moderator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Remove deletes a participant. The admin row is never removed.
func (r *Repository) Remove(ctx context.Context, sessionID, participantID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM session_participants WHERE session_id = $1 AND participant_id = $2 AND is_admin = FALSE`,
		sessionID, participantID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// IsParticipant reports whether name belongs to the session and the session is active.
func (r *Repository) IsParticipant(ctx context.Context, sessionID int64, name string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM session_participants p
		JOIN meetupqa s ON s.session_id = p.session_id
		WHERE p.session_id = $1 AND p.name = $2 AND s.is_active = TRUE)`, sessionID, name).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("membership: %w", err)
	}
	return ok, nil
}
