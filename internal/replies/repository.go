package replies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-qa/backend/internal/models"
)

// Repository handles reply persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a replies repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `reply_id, session_id, question_id, author, text, is_pinned, created_at`

func scan(row pgx.Row) (*models.Reply, error) {
	var r models.Reply
	err := row.Scan(&r.ID, &r.SessionID, &r.QuestionID, &r.Author, &r.Text, &r.IsPinned, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// IsQuestionActive reports whether the question is the session's active one.
func (r *Repository) IsQuestionActive(ctx context.Context, sessionID, questionID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM session_questions
		WHERE session_id = $1 AND question_id = $2 AND status = 'active')`, sessionID, questionID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("active question: %w", err)
	}
	return ok, nil
}

// Create adds a reply to the active question.
// Returns models.ErrQuestionNotActive when the question is not the active one.
func (r *Repository) Create(ctx context.Context, sessionID, questionID int64, author, text string) (*models.Reply, error) {
	reply, err := scan(r.pool.QueryRow(ctx, `INSERT INTO question_replies (session_id, question_id, author, text)
		SELECT session_id, question_id, $3::text, $4::text FROM session_questions
		WHERE session_id = $1 AND question_id = $2 AND status = 'active'
		RETURNING `+columns, sessionID, questionID, author, text))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrQuestionNotActive
	}
	return reply, err
}

// TogglePin flips the pinned state of a reply on the question.
func (r *Repository) TogglePin(ctx context.Context, questionID, replyID int64) (*models.Reply, error) {
	return scan(r.pool.QueryRow(ctx, `UPDATE question_replies SET is_pinned = NOT is_pinned
		WHERE question_id = $1 AND reply_id = $2 RETURNING `+columns, questionID, replyID))
}

// Delete removes a reply from the question.
func (r *Repository) Delete(ctx context.Context, questionID, replyID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM question_replies WHERE question_id = $1 AND reply_id = $2`, questionID, replyID)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
