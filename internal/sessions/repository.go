package sessions

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

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `session_id, session_code, created_by, admin_id, is_active,
	timer_start_timestamp, timer_end_timestamp, timer_duration_seconds, time_vote_active,
	grab_attention_triggered, report_generated, report_key,
	question_input_enabled, discussion_started, questions_sorted, created_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Code, &s.CreatedBy, &s.AdminID, &s.IsActive,
		&s.TimerStart, &s.TimerEnd, &s.TimerDurationSeconds, &s.TimeVoteActive,
		&s.GrabAttentionTriggered, &s.ReportGenerated, &s.ReportKey,
		&s.QuestionInputEnabled, &s.DiscussionStarted, &s.QuestionsSorted, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a session and its host as the admin participant.
// Returns models.ErrSessionCodeTaken when an active session already uses code.
func (r *Repository) Create(ctx context.Context, code, createdBy string, adminID *int64, votes int) (*models.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	s, err := scanSession(tx.QueryRow(ctx,
		`INSERT INTO meetupqa (session_code, created_by, admin_id) VALUES ($1, $2, $3) RETURNING `+sessionColumns,
		code, createdBy, adminID))
	if database.IsUniqueViolation(err) {
		return nil, models.ErrSessionCodeTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO session_participants (session_id, name, is_admin, remaining_votes) VALUES ($1, $2, TRUE, $3)`,
		s.ID, createdBy, votes)
	if err != nil {
		return nil, fmt.Errorf("insert admin participant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

// GetActiveByCode returns the active session holding code.
func (r *Repository) GetActiveByCode(ctx context.Context, code string) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM meetupqa WHERE session_code = $1 AND is_active = TRUE`, code))
}

// GetByID returns a session by ID, active or not.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM meetupqa WHERE session_id = $1`, id))
}

// OpenTimeVoteIfExpired opens the time vote once less than a whole second is
// left on the timer. It reports whether this call flipped the flag.
func (r *Repository) OpenTimeVoteIfExpired(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE meetupqa SET time_vote_active = TRUE
		WHERE session_id = $1 AND time_vote_active = FALSE
		AND timer_end_timestamp < NOW() + INTERVAL '1 second'`, id)
	if err != nil {
		return false, fmt.Errorf("open time vote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const questionSelect = `SELECT q.question_id, q.session_id, q.text, q.author, q.status, q.created_at, q.updated_at,
	(SELECT COUNT(*) FROM question_votes v WHERE v.question_id = q.question_id) AS votes
	FROM session_questions q WHERE q.session_id = $1 AND q.status = $2`

func queryQuestions(ctx context.Context, tx pgx.Tx, sessionID int64, status models.QuestionStatus, order string) ([]models.Question, error) {
	rows, err := tx.Query(ctx, questionSelect+` ORDER BY `+order, sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("%s questions: %w", status, err)
	}
	defer rows.Close()
	list := []models.Question{}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Author, &q.Status, &q.CreatedAt, &q.UpdatedAt, &q.Votes); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// Board loads participants, questions and replies of a session from one
// consistent read-only snapshot.
func (r *Repository) Board(ctx context.Context, sessionID int64, sorted bool) (*models.Board, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &models.Board{Participants: []models.Participant{}, Replies: []models.Reply{}}

	rows, err := tx.Query(ctx, `SELECT participant_id, session_id, name, remaining_votes, is_admin, is_moderator, joined_at
		FROM session_participants WHERE session_id = $1 ORDER BY participant_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.RemainingVotes, &p.IsAdmin, &p.IsModerator, &p.JoinedAt); err != nil {
			rows.Close()
			return nil, err
		}
		b.Participants = append(b.Participants, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pendingOrder := `q.created_at ASC, q.question_id ASC`
	if sorted {
		pendingOrder = `votes DESC, q.created_at ASC, q.question_id ASC`
	}
	if b.Pending, err = queryQuestions(ctx, tx, sessionID, models.StatusPending, pendingOrder); err != nil {
		return nil, err
	}
	active, err := queryQuestions(ctx, tx, sessionID, models.StatusActive, `q.question_id`)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		b.Active = &active[0]
	}
	if b.Finished, err = queryQuestions(ctx, tx, sessionID, models.StatusFinished, `q.updated_at DESC, q.question_id DESC`); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT reply_id, session_id, question_id, author, text, is_pinned, created_at
		FROM question_replies WHERE session_id = $1 ORDER BY created_at ASC, reply_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rp models.Reply
		if err := rows.Scan(&rp.ID, &rp.SessionID, &rp.QuestionID, &rp.Author, &rp.Text, &rp.IsPinned, &rp.CreatedAt); err != nil {
			return nil, err
		}
		b.Replies = append(b.Replies, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b, tx.Commit(ctx)
}

// TimeVoteCounts tallies the yes and no votes of the session's time poll.
func (r *Repository) TimeVoteCounts(ctx context.Context, sessionID int64) (models.TimeVoteCounts, error) {
	return countTimeVotes(ctx, r.pool, sessionID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func countTimeVotes(ctx context.Context, q querier, sessionID int64) (models.TimeVoteCounts, error) {
	var counts models.TimeVoteCounts
	rows, err := q.Query(ctx,
		`SELECT vote_value, COUNT(*) FROM time_extension_votes WHERE session_id = $1 GROUP BY vote_value`, sessionID)
	if err != nil {
		return counts, fmt.Errorf("count time votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return counts, err
		}
		switch value {
		case models.VoteYes:
			counts.Yes = n
		case models.VoteNo:
			counts.No = n
		}
	}
	return counts, rows.Err()
}

// HasTimeVoted reports whether name already voted in the session's time poll.
func (r *Repository) HasTimeVoted(ctx context.Context, sessionID int64, name string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM time_extension_votes WHERE session_id = $1 AND participant_name = $2)`,
		sessionID, name).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("has time voted: %w", err)
	}
	return ok, nil
}

// End deletes the session and everything that references it. It returns the
// key of the last uploaded report, if any, so the caller can remove the object.
func (r *Repository) End(ctx context.Context, id int64) (*string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var reportKey *string
	err = tx.QueryRow(ctx, `SELECT report_key FROM meetupqa WHERE session_id = $1 FOR UPDATE`, id).Scan(&reportKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}

	steps := []struct{ name, sql string }{
		{"replies", `DELETE FROM question_replies WHERE session_id = $1`},
		{"votes", `DELETE FROM question_votes WHERE question_id IN (SELECT question_id FROM session_questions WHERE session_id = $1)`},
		{"questions", `DELETE FROM session_questions WHERE session_id = $1`},
		{"time votes", `DELETE FROM time_extension_votes WHERE session_id = $1`},
		{"participants", `DELETE FROM session_participants WHERE session_id = $1`},
		{"session", `DELETE FROM meetupqa WHERE session_id = $1`},
	}
	for _, st := range steps {
		if _, err := tx.Exec(ctx, st.sql, id); err != nil {
			return nil, fmt.Errorf("delete %s: %w", st.name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return reportKey, nil
}

// SetTimer starts a countdown of the given length, closes any time vote and
// discards its ballots. It returns the stored start and end times.
func (r *Repository) SetTimer(ctx context.Context, id int64, d time.Duration) (start, end time.Time, err error) {
	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		seconds := int(d / time.Second)
		err := tx.QueryRow(ctx, `UPDATE meetupqa
			SET timer_start_timestamp = NOW(),
			    timer_end_timestamp = NOW() + $2::int * INTERVAL '1 second',
			    timer_duration_seconds = $2::int,
			    time_vote_active = FALSE
			WHERE session_id = $1
			RETURNING timer_start_timestamp, timer_end_timestamp`, id, seconds).Scan(&start, &end)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("set timer: %w", err)
		}
		_, err = tx.Exec(ctx, `DELETE FROM time_extension_votes WHERE session_id = $1`, id)
		return err
	})
	return start, end, err
}

// StartTimeVote opens a fresh time poll.
func (r *Repository) StartTimeVote(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM time_extension_votes WHERE session_id = $1`, id); err != nil {
			return fmt.Errorf("clear time votes: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE meetupqa SET time_vote_active = TRUE WHERE session_id = $1`, id)
		if err != nil {
			return fmt.Errorf("start time vote: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// EndTimeVote closes the time poll and clears the timer.
func (r *Repository) EndTimeVote(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE meetupqa
			SET time_vote_active = FALSE, timer_end_timestamp = NULL, timer_duration_seconds = 0
			WHERE session_id = $1`, id)
		if err != nil {
			return fmt.Errorf("end time vote: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM time_extension_votes WHERE session_id = $1`, id)
		return err
	})
}

// CastTimeVote records or replaces name's vote and returns the new tally.
// Returns models.ErrTimeVoteInactive when no poll is open.
func (r *Repository) CastTimeVote(ctx context.Context, id int64, name, vote string) (models.TimeVoteCounts, error) {
	var counts models.TimeVoteCounts
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var open bool
		err := tx.QueryRow(ctx, `SELECT time_vote_active FROM meetupqa WHERE session_id = $1`, id).Scan(&open)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("time vote state: %w", err)
		}
		if !open {
			return models.ErrTimeVoteInactive
		}
		_, err = tx.Exec(ctx, `INSERT INTO time_extension_votes (session_id, participant_name, vote_value)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_id, participant_name) DO UPDATE SET vote_value = EXCLUDED.vote_value, created_at = NOW()`,
			id, name, vote)
		if err != nil {
			return fmt.Errorf("cast time vote: %w", err)
		}
		counts, err = countTimeVotes(ctx, tx, id)
		return err
	})
	return counts, err
}

// FinishActive moves the active question to finished and resets the timer.
// It reports whether a question was finished.
func (r *Repository) FinishActive(ctx context.Context, id int64) (bool, error) {
	var updated bool
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Session row first, the same order question activation locks in.
		_, err := tx.Exec(ctx, `UPDATE meetupqa
			SET timer_end_timestamp = NULL, timer_duration_seconds = 0, time_vote_active = FALSE
			WHERE session_id = $1`, id)
		if err != nil {
			return fmt.Errorf("reset timer: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE session_questions SET status = 'finished', updated_at = NOW()
			WHERE session_id = $1 AND status = 'active'`, id)
		if err != nil {
			return fmt.Errorf("finish active: %w", err)
		}
		updated = tag.RowsAffected() > 0
		return nil
	})
	return updated, err
}

// ClearTimeVotes deletes the ballots of the session's time poll.
func (r *Repository) ClearTimeVotes(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM time_extension_votes WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("clear time votes: %w", err)
	}
	return nil
}

// TriggerAttention stores trigger on an active session.
func (r *Repository) TriggerAttention(ctx context.Context, id int64, trigger string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meetupqa SET grab_attention_triggered = $2 WHERE session_id = $1 AND is_active = TRUE`, id, trigger)
	if err != nil {
		return fmt.Errorf("trigger attention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearAttention clears the attention flag only if it still holds trigger.
func (r *Repository) ClearAttention(ctx context.Context, id int64, trigger string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meetupqa SET grab_attention_triggered = NULL WHERE session_id = $1 AND grab_attention_triggered = $2`,
		id, trigger)
	if err != nil {
		return false, fmt.Errorf("clear attention: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkReportRequested sets report_generated on an active session and returns its code.
func (r *Repository) MarkReportRequested(ctx context.Context, id int64) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx,
		`UPDATE meetupqa SET report_generated = TRUE WHERE session_id = $1 AND is_active = TRUE RETURNING session_code`,
		id).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("mark report: %w", err)
	}
	return code, nil
}

// Flag is a boolean session setting the host can change.
type Flag string

const (
	FlagQuestionInput     Flag = "question_input_enabled"
	FlagDiscussionStarted Flag = "discussion_started"
	FlagQuestionsSorted   Flag = "questions_sorted"
)

var flagUpdates = map[Flag]string{
	FlagQuestionInput:     `UPDATE meetupqa SET question_input_enabled = $2 WHERE session_id = $1`,
	FlagDiscussionStarted: `UPDATE meetupqa SET discussion_started = $2 WHERE session_id = $1`,
	FlagQuestionsSorted:   `UPDATE meetupqa SET questions_sorted = $2 WHERE session_id = $1`,
}

// SetFlag writes one of the session's boolean settings.
func (r *Repository) SetFlag(ctx context.Context, id int64, flag Flag, value bool) error {
	q, ok := flagUpdates[flag]
	if !ok {
		return fmt.Errorf("unknown flag %q", flag)
	}
	tag, err := r.pool.Exec(ctx, q, id, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", flag, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
