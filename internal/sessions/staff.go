package sessions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/pkg/response"
	"github.com/meetup-qa/backend/pkg/utils"
)

// ContextParticipant is the context key for the participant resolved by RequireSessionStaff.
const ContextParticipant = "participant"

// ParticipantLookup finds a participant of a session by name.
type ParticipantLookup interface {
	GetByName(ctx context.Context, sessionID int64, name string) (*models.Participant, error)
}

// RequireSessionStaff checks that the participant_name query parameter names an admin
// or moderator of the :session_id session. With adminOnly set, moderators are
// rejected too.
func RequireSessionStaff(lookup ParticipantLookup, adminOnly bool, logger *zap.Logger) gin.HandlerFunc {
	denied := "Only admin or moderator can perform this action"
	if adminOnly {
		denied = "Only admin can perform this action"
	}
	return func(c *gin.Context) {
		sessionID, ok := utils.ParamID(c, "session_id")
		if !ok {
			response.Abort(c, http.StatusBadRequest, "invalid session id")
			return
		}
		name := strings.TrimSpace(c.Query("participant_name"))
		if name == "" {
			response.Abort(c, http.StatusForbidden, denied)
			return
		}
		p, err := lookup.GetByName(c.Request.Context(), sessionID, name)
		if errors.Is(err, models.ErrNotFound) {
			response.Abort(c, http.StatusForbidden, denied)
			return
		}
		if err != nil {
			logger.Error("staff lookup", zap.Error(err), zap.Int64("session_id", sessionID))
			response.Abort(c, http.StatusInternalServerError, "Database error")
			return
		}
		if !p.IsAdmin && (adminOnly || !p.IsModerator) {
			response.Abort(c, http.StatusForbidden, denied)
			return
		}
		c.Set(ContextParticipant, p)
		c.Next()
	}
}

// Requester returns the participant set by RequireSessionStaff, or nil.
func Requester(c *gin.Context) *models.Participant {
	v, ok := c.Get(ContextParticipant)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Participant)
	return p
}
