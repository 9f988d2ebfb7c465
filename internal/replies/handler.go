package replies

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/realtime"
	"github.com/meetup-qa/backend/pkg/response"
	"github.com/meetup-qa/backend/pkg/utils"
)

// CreateRequest is the body for POST .../questions/:question_id/replies.
type CreateRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

type store interface {
	IsQuestionActive(ctx context.Context, sessionID, questionID int64) (bool, error)
	Create(ctx context.Context, sessionID, questionID int64, author, text string) (*models.Reply, error)
	TogglePin(ctx context.Context, questionID, replyID int64) (*models.Reply, error)
	Delete(ctx context.Context, questionID, replyID int64) error
}

type participantLookup interface {
	GetByName(ctx context.Context, sessionID int64, name string) (*models.Participant, error)
}

type notifier interface {
	Notify(sessionID int64, event string, payload interface{})
}

// Handler serves reply endpoints.
type Handler struct {
	repo    store
	members participantLookup
	hub     notifier
	maxLen  int
	logger  *zap.Logger
}

// NewHandler creates a replies handler. Replies longer than maxLen characters are rejected.
func NewHandler(repo store, members participantLookup, hub notifier, maxLen int, logger *zap.Logger) *Handler {
	if maxLen <= 0 {
		maxLen = 200
	}
	return &Handler{repo: repo, members: members, hub: hub, maxLen: maxLen, logger: logger}
}

func ids(c *gin.Context, names ...string) ([]int64, bool) {
	out := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := utils.ParamID(c, n)
		if !ok {
			response.BadRequest(c, "invalid "+strings.ReplaceAll(n, "_", " "))
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

// requireActive writes 400 and returns false unless the question is active.
func (h *Handler) requireActive(c *gin.Context, sessionID, questionID int64) bool {
	active, err := h.repo.IsQuestionActive(c.Request.Context(), sessionID, questionID)
	if err != nil {
		h.logger.Error("active question check", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return false
	}
	if !active {
		response.BadRequest(c, "Question is not active or not found")
		return false
	}
	return true
}

func (h *Handler) updated(sessionID int64, reason string) {
	h.hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": reason})
}

// Create handles POST /meetupQA/:session_id/questions/:question_id/replies.
func (h *Handler) Create(c *gin.Context) {
	v, ok := ids(c, "session_id", "question_id")
	if !ok {
		return
	}
	sessionID, questionID := v[0], v[1]
	var req CreateRequest
	_ = c.ShouldBindJSON(&req)
	text, author := strings.TrimSpace(req.Text), strings.TrimSpace(req.Author)
	if text == "" || author == "" {
		response.BadRequest(c, "Reply text and author are required")
		return
	}
	if utf8.RuneCountInString(text) > h.maxLen {
		response.BadRequest(c, fmt.Sprintf("Reply must be at most %d characters", h.maxLen))
		return
	}

	reply, err := h.repo.Create(c.Request.Context(), sessionID, questionID, author, text)
	if errors.Is(err, models.ErrQuestionNotActive) {
		response.BadRequest(c, "Question is not active or not found")
		return
	}
	if err != nil {
		h.logger.Error("create reply", zap.Error(err), zap.Int64("question_id", questionID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "reply_added")
	response.Created(c, reply)
}

// TogglePin handles PUT /meetupQA/:session_id/questions/:question_id/replies/:reply_id/pin.
func (h *Handler) TogglePin(c *gin.Context) {
	v, ok := ids(c, "session_id", "question_id", "reply_id")
	if !ok {
		return
	}
	sessionID, questionID, replyID := v[0], v[1], v[2]
	if !h.requireActive(c, sessionID, questionID) {
		return
	}

	reply, err := h.repo.TogglePin(c.Request.Context(), questionID, replyID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Reply not found")
		return
	}
	if err != nil {
		h.logger.Error("pin reply", zap.Error(err), zap.Int64("reply_id", replyID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "reply_pinned")
	response.OK(c, gin.H{"message": "Reply pin toggled", "is_pinned": reply.IsPinned})
}

// Delete handles DELETE /meetupQA/:session_id/questions/:question_id/replies/:reply_id.
func (h *Handler) Delete(c *gin.Context) {
	v, ok := ids(c, "session_id", "question_id", "reply_id")
	if !ok {
		return
	}
	sessionID, questionID, replyID := v[0], v[1], v[2]
	if !h.requireActive(c, sessionID, questionID) {
		return
	}
	ctx := c.Request.Context()

	name := strings.TrimSpace(c.Query("participant_name"))
	p, err := h.members.GetByName(ctx, sessionID, name)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("staff check", zap.Error(err))
		response.Internal(c, "Database error")
		return
	}
	if name == "" || p == nil || !p.IsStaff() {
		response.Forbidden(c, "Only admin or moderator can delete replies")
		return
	}

	err = h.repo.Delete(ctx, questionID, replyID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Reply not found")
		return
	}
	if err != nil {
		h.logger.Error("delete reply", zap.Error(err), zap.Int64("reply_id", replyID))
		response.Internal(c, "Database error")
		return
	}
	h.updated(sessionID, "reply_deleted")
	response.OK(c, gin.H{"message": "Reply deleted"})
}
