package leads

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/pkg/response"
)

// CreateRequest is the body for POST /meetup_qa/leads.
type CreateRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

type store interface {
	Save(ctx context.Context, email string) (bool, error)
}

// Handler serves the lead sign-up endpoint.
type Handler struct {
	repo   store
	logger *zap.Logger
}

// NewHandler creates a leads handler.
func NewHandler(repo store, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /meetup_qa/leads. Signing up twice is not an error.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "A valid email is required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	created, err := h.repo.Save(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("save lead", zap.Error(err))
		response.Internal(c, "Database error")
		return
	}
	if created {
		response.Created(c, gin.H{"message": "Thanks, we will keep you posted"})
		return
	}
	response.OK(c, gin.H{"message": "Already subscribed"})
}
