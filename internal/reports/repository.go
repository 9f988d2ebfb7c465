package reports

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

// Data is everything a report is built from.
type Data struct {
	SessionID   int64
	SessionCode string
	CreatedBy   string
	CreatedAt   time.Time
	Questions   []models.Question
	// Replies keyed by question ID, oldest first.
	Replies map[int64][]models.Reply
}

// Repository loads report data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the session, its questions in display order and their replies.
func (r *Repository) Load(ctx context.Context, sessionID int64) (*Data, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	d := &Data{SessionID: sessionID, Replies: map[int64][]models.Reply{}}
	err = tx.QueryRow(ctx, `SELECT session_code, created_by, created_at FROM meetupqa WHERE session_id = $1`, sessionID).
		Scan(&d.SessionCode, &d.CreatedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT q.question_id, q.session_id, q.text, q.author, q.status, q.created_at, q.updated_at,
		(SELECT COUNT(*) FROM question_votes v WHERE v.question_id = q.question_id) AS votes
		FROM session_questions q WHERE q.session_id = $1
		ORDER BY CASE q.status WHEN 'active' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END, votes DESC, q.question_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Author, &q.Status, &q.CreatedAt, &q.UpdatedAt, &q.Votes); err != nil {
			rows.Close()
			return nil, err
		}
		d.Questions = append(d.Questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT reply_id, session_id, question_id, author, text, is_pinned, created_at
		FROM question_replies WHERE session_id = $1 ORDER BY created_at, reply_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rp models.Reply
		if err := rows.Scan(&rp.ID, &rp.SessionID, &rp.QuestionID, &rp.Author, &rp.Text, &rp.IsPinned, &rp.CreatedAt); err != nil {
			return nil, err
		}
		d.Replies[rp.QuestionID] = append(d.Replies[rp.QuestionID], rp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return d, tx.Commit(ctx)
}

// SetKey stores the object key of the uploaded report on the session and
// returns the key it replaced, if any.
func (r *Repository) SetKey(ctx context.Context, sessionID int64, key string) (*string, error) {
	var previous *string
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT report_key FROM meetupqa WHERE session_id = $1 FOR NO KEY UPDATE`, sessionID).Scan(&previous)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE meetupqa SET report_key = $2 WHERE session_id = $1`, sessionID, key); err != nil {
			return fmt.Errorf("set report key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}
