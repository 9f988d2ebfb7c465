package participants

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

// JoinRequest is the body for POST /meetupQA/:session_id/participants.
type JoinRequest struct {
	Name string `json:"name"`
}

// ModeratorRequest is the body for PUT .../participants/:participant_id/moderator.
type ModeratorRequest struct {
	IsModerator *bool `json:"is_moderator"`
}

type store interface {
	Add(ctx context.Context, sessionID int64, name string, votes int) (*models.Participant, error)
	GetByName(ctx context.Context, sessionID int64, name string) (*models.Participant, error)
	GetByID(ctx context.Context, sessionID, participantID int64) (*models.Participant, error)
	SetModerator(ctx context.Context, sessionID, participantID int64, isModerator bool) error
	Remove(ctx context.Context, sessionID, participantID int64) error
}

type notifier interface {
	Notify(sessionID int64, event string, payload interface{})
}

// Handler serves participant endpoints.
type Handler struct {
	repo   store
	hub    notifier
	votes  int
	logger *zap.Logger
}

// NewHandler creates a participants handler. Each new participant starts with votes votes.
func NewHandler(repo store, hub notifier, votes int, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, votes: votes, logger: logger}
}

// requester resolves the participant_name query parameter. A missing name or
// unknown participant yields (nil, nil).
func (h *Handler) requester(c *gin.Context, sessionID int64) (*models.Participant, error) {
	name := strings.TrimSpace(c.Query("participant_name"))
	if name == "" {
		return nil, nil
	}
	p, err := h.repo.GetByName(c.Request.Context(), sessionID, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// Join handles POST /meetupQA/:session_id/participants.
func (h *Handler) Join(c *gin.Context) {
	sessionID, ok := utils.ParamID(c, "session_id")
	if !ok {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "Name is required")
		return
	}
	if utf8.RuneCountInString(name) > 100 {
		response.BadRequest(c, "Name is too long")
		return
	}

	p, err := h.repo.Add(c.Request.Context(), sessionID, name, h.votes)
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "Session not found or inactive")
		return
	case errors.Is(err, models.ErrNameTaken):
		response.Conflict(c, "Name already taken in this session")
		return
	case err != nil:
		h.logger.Error("add participant", zap.Error(err), zap.Int64("session_id", sessionID))
		response.Internal(c, "Database error")
		return
	}

	h.hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": "participant_joined"})
	response.Created(c, gin.H{"message": "Participant added successfully", "participant_id": p.ID})
}

// SetModerator handles PUT /meetupQA/:session_id/participants/:participant_id/moderator.
func (h *Handler) SetModerator(c *gin.Context) {
	sessionID, ok1 := utils.ParamID(c, "session_id")
	participantID, ok2 := utils.ParamID(c, "participant_id")
	if !ok1 || !ok2 {
		response.BadRequest(c, "invalid id")
		return
	}
	var req ModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsModerator == nil {
		response.BadRequest(c, "is_moderator must be a boolean")
		return
	}

	me, err := h.requester(c, sessionID)
	if err != nil {
		h.logger.Error("admin check", zap.Error(err))
		response.Internal(c, "Database error")
		return
	}
	if me == nil || !me.IsAdmin {
		response.Forbidden(c, "Only admin can appoint moderators")
		return
	}

	err = h.repo.SetModerator(c.Request.Context(), sessionID, participantID, *req.IsModerator)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Participant not found")
		return
	}
	if err != nil {
		h.logger.Error("set moderator", zap.Error(err), zap.Int64("participant_id", participantID))
		response.Internal(c, "Database error")
		return
	}

	verb := "revoked"
	if *req.IsModerator {
		verb = "granted"
	}
	h.hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": "moderator_changed"})
	response.OK(c, gin.H{"message": "Moderator status " + verb})
}

// Remove handles DELETE /meetupQA/:session_id/participants/:participant_id.
func (h *Handler) Remove(c *gin.Context) {
	sessionID, ok1 := utils.ParamID(c, "session_id")
	participantID, ok2 := utils.ParamID(c, "participant_id")
	if !ok1 || !ok2 {
		response.BadRequest(c, "invalid id")
		return
	}
	ctx := c.Request.Context()

	me, err := h.requester(c, sessionID)
	if err != nil {
		h.logger.Error("staff check", zap.Error(err))
		response.Internal(c, "Database error")
		return
	}
	if me == nil || !me.IsStaff() {
		response.Forbidden(c, "Only admin or moderator can remove participants")
		return
	}

	target, err := h.repo.GetByID(ctx, sessionID, participantID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Participant not found")
		return
	}
	if err != nil {
		h.logger.Error("target check", zap.Error(err))
		response.Internal(c, "Database error")
		return
	}
	if target.IsAdmin {
		response.Forbidden(c, "Cannot remove the admin")
		return
	}
	if target.Name == me.Name {
		response.BadRequest(c, "Cannot remove yourself")
		return
	}

	if err := h.repo.Remove(ctx, sessionID, participantID); err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("remove participant", zap.Error(err), zap.Int64("participant_id", participantID))
		response.Internal(c, "Database error")
		return
	}
	h.hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": "participant_removed"})
	response.OK(c, gin.H{"message": "Participant removed successfully"})
}
