package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/pkg/database"
)

// Repository handles question and vote persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `question_id, session_id, text, author, status, created_at, updated_at,
	(SELECT COUNT(*) FROM question_votes v WHERE v.question_id = session_questions.question_id)`

func scan(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.SessionID, &q.Text, &q.Author, &q.Status, &q.CreatedAt, &q.UpdatedAt, &q.Votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Create adds a pending question to an active session.
// Returns models.ErrQuestionInputDisabled when the host has closed submissions.
func (r *Repository) Create(ctx context.Context, sessionID int64, text, author string) (*models.Question, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx,
		`SELECT question_input_enabled FROM meetupqa WHERE session_id = $1 AND is_active = TRUE`, sessionID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session state: %w", err)
	}
	if !enabled {
		return nil, models.ErrQuestionInputDisabled
	}
	return scan(r.pool.QueryRow(ctx,
		`INSERT INTO session_questions (session_id, text, author) VALUES ($1, $2, $3) RETURNING `+columns,
		sessionID, text, author))
}

// GetByID returns a question with its vote count.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM session_questions WHERE question_id = $1`, id))
}

// Vote spends one of name's votes on the question and returns the question's
// session and new vote count. A duplicate vote rolls back the decrement.
func (r *Repository) Vote(ctx context.Context, questionID int64, name string) (sessionID int64, votes int, err error) {
	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT session_id FROM session_questions WHERE question_id = $1`, questionID).Scan(&sessionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup question: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE session_participants SET remaining_votes = remaining_votes - 1
			WHERE session_id = $1 AND name = $2 AND remaining_votes > 0`, sessionID, name)
		if err != nil {
			return fmt.Errorf("spend vote: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNoVotesRemaining
		}

		_, err = tx.Exec(ctx, `INSERT INTO question_votes (question_id, participant_name) VALUES ($1, $2)`, questionID, name)
		if database.IsUniqueViolation(err) {
			return models.ErrAlreadyVoted
		}
		if err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM question_votes WHERE question_id = $1`, questionID).Scan(&votes)
	})
	return sessionID, votes, err
}

// Activate makes the question the session's active one. The previous active
// question is finished and the timer and time vote are reset in the same
// transaction, holding the session row lock. A zero sessionID accepts any session; otherwise the question
// must belong to it. It returns the question's session.
func (r *Repository) Activate(ctx context.Context, sessionID, questionID int64) (int64, error) {
	var owner int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Lock the session row so activations in one session run one at a time.
		err := tx.QueryRow(ctx, `SELECT s.session_id FROM session_questions q
			JOIN meetupqa s ON s.session_id = q.session_id
			WHERE q.question_id = $1 AND ($2::bigint = 0 OR q.session_id = $2::bigint)
			FOR NO KEY UPDATE OF s`, questionID, sessionID).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup question: %w", err)
		}

		steps := []struct {
			name string
			sql  string
			args []any
		}{
			{"finish previous", `UPDATE session_questions SET status = 'finished', updated_at = NOW()
				WHERE session_id = $1 AND status = 'active' AND question_id <> $2`, []any{owner, questionID}},
			{"reset timer", `UPDATE meetupqa
				SET timer_end_timestamp = NULL, timer_duration_seconds = 0, time_vote_active = FALSE
				WHERE session_id = $1`, []any{owner}},
			{"activate", `UPDATE session_questions SET status = 'active', updated_at = NOW()
				WHERE question_id = $1`, []any{questionID}},
		}
		for _, st := range steps {
			if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
				return fmt.Errorf("%s: %w", st.name, err)
			}
		}
		return nil
	})
	return owner, err
}

// Auth returns the question's author and the roles name holds in the session.
func (r *Repository) Auth(ctx context.Context, sessionID, questionID int64, name string) (*models.QuestionAuth, error) {
	var a models.QuestionAuth
	err := r.pool.QueryRow(ctx, `SELECT q.author, COALESCE(p.is_admin, FALSE), COALESCE(p.is_moderator, FALSE)
		FROM session_questions q
		LEFT JOIN session_participants p ON p.session_id = q.session_id AND p.name = $3
		WHERE q.session_id = $1 AND q.question_id = $2`, sessionID, questionID, name).
		Scan(&a.Author, &a.IsAdmin, &a.IsModerator)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("question auth: %w", err)
	}
	return &a, nil
}

// UpdateText replaces the question text.
func (r *Repository) UpdateText(ctx context.Context, sessionID, questionID int64, text string) (*models.Question, error) {
	return scan(r.pool.QueryRow(ctx, `UPDATE session_questions SET text = $3, updated_at = NOW()
		WHERE session_id = $1 AND question_id = $2 RETURNING `+columns, sessionID, questionID, text))
}

// Delete removes a question; its votes and replies go with it.
func (r *Repository) Delete(ctx context.Context, sessionID, questionID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM session_questions WHERE session_id = $1 AND question_id = $2`, sessionID, questionID)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
