package questions

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/realtime"
	"github.com/meetup-qa/backend/pkg/response"
	"github.com/meetup-qa/backend/pkg/utils"
)

const maxTextLen = 1000

// CreateRequest is the body for POST /meetupQA/:session_id/questions.
type CreateRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// VoteRequest is the body for POST /questions/:question_id/vote.
type VoteRequest struct {
	ParticipantName string `json:"participant_name"`
}

// EditRequest is the body for PUT /meetupQA/:session_id/questions/:question_id.
type EditRequest struct {
	Text            string `json:"text"`
	ParticipantName string `json:"participant_name"`
}

type store interface {
	Create(ctx context.Context, sessionID int64, text, author string) (*models.Question, error)
	GetByID(ctx context.Context, id int64) (*models.Question, error)
	Vote(ctx context.Context, questionID int64, name string) (int64, int, error)
	Activate(ctx context.Context, sessionID, questionID int64) (int64, error)
	Auth(ctx context.Context, sessionID, questionID int64, name string) (*models.QuestionAuth, error)
	UpdateText(ctx context.Context, sessionID, questionID int64, text string) (*models.Question, error)
	Delete(ctx context.Context, sessionID, questionID int64) error
}

type participantLookup interface {
	GetByName(ctx context.Context, sessionID int64, name string) (*models.Participant, error)
}

type notifier interface {
	Notify(sessionID int64, event string, payload interface{})
}

// Handler serves question endpoints.
type Handler struct {
	repo    store
	members participantLookup
	hub     notifier
	logger  *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(repo store, members participantLookup, hub notifier, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, members: members, hub: hub, logger: logger}
}

func (h *Handler) updated(sessionID int64, reason string, questionID int64) {
	h.hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": reason, "question_id": questionID})
}

// Create handles POST /meetupQA/:session_id/questions.
func (h *Handler) Create(c *gin.Context) {
	sessionID, ok := utils.ParamID(c, "session_id")
	if !ok {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req CreateRequest
	_ = c.ShouldBindJSON(&req)
	text, author := strings.TrimSpace(req.Text), strings.TrimSpace(req.Author)
	if text == "" || author == "" {
		response.BadRequest(c, "Question text and author are required")
		return
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		response.BadRequest(c, "Question is too long")
		return
	}

	q, err := h.repo.Create(c.Request.Context(), sessionID, text, author)
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "Session not found or inactive")
		return
	case errors.Is(err, models.ErrQuestionInputDisabled):
		response.Forbidden(c, "Question submission is currently disabled")
		return
	case err != nil:
		h.logger.Error("create question", zap.Error(err), zap.Int64("session_id", sessionID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "question_added", q.ID)
	response.Created(c, q)
}

// Vote handles POST /questions/:question_id/vote.
func (h *Handler) Vote(c *gin.Context) {
	questionID, ok := utils.ParamID(c, "question_id")
	if !ok {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req VoteRequest
	_ = c.ShouldBindJSON(&req)
	name := strings.TrimSpace(req.ParticipantName)
	if name == "" {
		response.BadRequest(c, "Participant name is required")
		return
	}

	sessionID, votes, err := h.repo.Vote(c.Request.Context(), questionID, name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "Question not found")
		return
	case errors.Is(err, models.ErrNoVotesRemaining):
		response.BadRequest(c, "No votes remaining or participant not found")
		return
	case errors.Is(err, models.ErrAlreadyVoted):
		response.BadRequest(c, "Already voted on this question")
		return
	case err != nil:
		h.logger.Error("vote", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "question_voted", questionID)
	response.OK(c, gin.H{"message": "Vote recorded", "votes": votes})
}

// Activate handles PUT /meetupQA/:session_id/questions/:question_id/activate.
// Staff access is checked by middleware.
func (h *Handler) Activate(c *gin.Context) {
	sessionID, ok1 := utils.ParamID(c, "session_id")
	questionID, ok2 := utils.ParamID(c, "question_id")
	if !ok1 || !ok2 {
		response.BadRequest(c, "invalid id")
		return
	}
	h.activate(c, sessionID, questionID)
}

// ActivateByQuestion handles PUT /questions/:question_id/activate. The
// participant_name query parameter must name staff of the question's session.
func (h *Handler) ActivateByQuestion(c *gin.Context) {
	questionID, ok := utils.ParamID(c, "question_id")
	if !ok {
		response.BadRequest(c, "invalid question id")
		return
	}
	ctx := c.Request.Context()
	q, err := h.repo.GetByID(ctx, questionID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Question not found")
		return
	}
	if err != nil {
		h.logger.Error("get question", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}

	name := strings.TrimSpace(c.Query("participant_name"))
	p, err := h.members.GetByName(ctx, q.SessionID, name)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("staff check", zap.Error(err))
		response.Internal(c, "Database error")
		return
	}
	if name == "" || p == nil || !p.IsStaff() {
		response.Forbidden(c, "Only admin or moderator can activate questions")
		return
	}
	h.activate(c, q.SessionID, questionID)
}

func (h *Handler) activate(c *gin.Context, sessionID, questionID int64) {
	owner, err := h.repo.Activate(c.Request.Context(), sessionID, questionID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Question not found")
		return
	}
	if err != nil {
		h.logger.Error("activate question", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(owner, "question_activated", questionID)
	response.OK(c, gin.H{"message": "Question activated", "question_id": questionID})
}

// Edit handles PUT /meetupQA/:session_id/questions/:question_id.
func (h *Handler) Edit(c *gin.Context) {
	sessionID, ok1 := utils.ParamID(c, "session_id")
	questionID, ok2 := utils.ParamID(c, "question_id")
	if !ok1 || !ok2 {
		response.BadRequest(c, "invalid id")
		return
	}
	var req EditRequest
	_ = c.ShouldBindJSON(&req)
	text, name := strings.TrimSpace(req.Text), strings.TrimSpace(req.ParticipantName)
	if text == "" || name == "" {
		response.BadRequest(c, "Question text and participant name are required")
		return
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		response.BadRequest(c, "Question is too long")
		return
	}
	ctx := c.Request.Context()

	auth, err := h.repo.Auth(ctx, sessionID, questionID, name)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Question not found")
		return
	}
	if err != nil {
		h.logger.Error("question auth", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	if auth.Author != name && !auth.IsAdmin {
		response.Forbidden(c, "Only the author or admin can edit this question")
		return
	}

	q, err := h.repo.UpdateText(ctx, sessionID, questionID, text)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Question not found")
		return
	}
	if err != nil {
		h.logger.Error("edit question", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "question_edited", questionID)
	response.OK(c, q)
}

// Delete handles DELETE /meetupQA/:session_id/questions/:question_id.
func (h *Handler) Delete(c *gin.Context) {
	sessionID, ok1 := utils.ParamID(c, "session_id")
	questionID, ok2 := utils.ParamID(c, "question_id")
	if !ok1 || !ok2 {
		response.BadRequest(c, "invalid id")
		return
	}
	name := strings.TrimSpace(c.Query("participant_name"))
	if name == "" {
		response.BadRequest(c, "Participant name is required")
		return
	}
	ctx := c.Request.Context()

	auth, err := h.repo.Auth(ctx, sessionID, questionID, name)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Question not found")
		return
	}
	if err != nil {
		h.logger.Error("question auth", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	if auth.Author != name && !auth.IsAdmin && !auth.IsModerator {
		response.Forbidden(c, "Only the author, admin or moderator can delete this question")
		return
	}

	if err := h.repo.Delete(ctx, sessionID, questionID); err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("delete question", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "question_deleted", questionID)
	response.NoContent(c)
}
