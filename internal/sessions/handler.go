package sessions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/middleware"
	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/realtime"
	"github.com/meetup-qa/backend/pkg/queue"
	"github.com/meetup-qa/backend/pkg/response"
	"github.com/meetup-qa/backend/pkg/utils"
)

// CreateRequest is the body for POST /meetupQA.
type CreateRequest struct {
	SessionCode string `json:"session_code" binding:"omitempty,sessioncode"`
	CreatedBy   string `json:"created_by" binding:"required,max=100"`
}

// TimerRequest is the body for POST /meetupQA/:session_id/timer.
type TimerRequest struct {
	Minutes float64 `json:"minutes" binding:"required,gt=0,lte=600"`
}

// TimeVoteRequest is the body for POST /meetupQA/:session_id/time-vote.
type TimeVoteRequest struct {
	ParticipantName string `json:"participant_name"`
	Vote            string `json:"vote" binding:"omitempty,timevote"`
}

// AttentionRequest is the body for POST /meetupQA/:session_id/grab-attention.
type AttentionRequest struct {
	AdminName string `json:"admin_name" binding:"max=100"`
}

// QuestionInputRequest is the body for PUT /meetupQA/:session_id/toggle-question-input.
type QuestionInputRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SortRequest is the optional body for PUT /meetupQA/:session_id/sort-questions.
type SortRequest struct {
	Sorted *bool `json:"sorted"`
}

type store interface {
	Create(ctx context.Context, code, createdBy string, adminID *int64, votes int) (*models.Session, error)
	GetActiveByCode(ctx context.Context, code string) (*models.Session, error)
	GetByID(ctx context.Context, id int64) (*models.Session, error)
	OpenTimeVoteIfExpired(ctx context.Context, id int64) (bool, error)
	Board(ctx context.Context, sessionID int64, sorted bool) (*models.Board, error)
	TimeVoteCounts(ctx context.Context, sessionID int64) (models.TimeVoteCounts, error)
	HasTimeVoted(ctx context.Context, sessionID int64, name string) (bool, error)
	End(ctx context.Context, id int64) (*string, error)
	SetTimer(ctx context.Context, id int64, d time.Duration) (time.Time, time.Time, error)
	StartTimeVote(ctx context.Context, id int64) error
	EndTimeVote(ctx context.Context, id int64) error
	CastTimeVote(ctx context.Context, id int64, name, vote string) (models.TimeVoteCounts, error)
	FinishActive(ctx context.Context, id int64) (bool, error)
	ClearTimeVotes(ctx context.Context, id int64) error
	TriggerAttention(ctx context.Context, id int64, trigger string) error
	MarkReportRequested(ctx context.Context, id int64) (string, error)
	SetFlag(ctx context.Context, id int64, flag Flag, value bool) error
}

type notifier interface {
	Notify(sessionID int64, event string, payload interface{})
}

type attentionScheduler interface {
	Schedule(sessionID int64, trigger string)
	Cancel(sessionID int64)
}

type reportQueue interface {
	EnqueueReport(ctx context.Context, p queue.ReportPayload) error
}

type reportStore interface {
	PresignReport(ctx context.Context, key string) (string, error)
	DeleteReport(ctx context.Context, key string) error
	PresignExpire() time.Duration
}

// Options configures session behaviour.
type Options struct {
	CodeLength          int
	VotesPerParticipant int
}

// Handler serves session endpoints.
type Handler struct {
	repo      store
	hub       notifier
	attention attentionScheduler
	jobs      reportQueue
	reports   reportStore
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

// NewHandler creates a sessions handler. jobs and reports may be nil when
// Redis or S3 are not configured.
func NewHandler(repo store, hub notifier, attention attentionScheduler, jobs reportQueue, reports reportStore, opts Options, logger *zap.Logger) *Handler {
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	return &Handler{
		repo:      repo,
		hub:       hub,
		attention: attention,
		jobs:      jobs,
		reports:   reports,
		opts:      opts,
		now:       time.Now,
		logger:    logger,
	}
}

func (h *Handler) sessionID(c *gin.Context) (int64, bool) {
	id, ok := utils.ParamID(c, "session_id")
	if !ok {
		response.BadRequest(c, "invalid session id")
	}
	return id, ok
}

func (h *Handler) updated(sessionID int64, reason string) {
	h.hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": reason})
}

// Create handles POST /meetupQA.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		response.BadRequest(c, "created_by is required")
		return
	}
	var adminID *int64
	if id, ok := middleware.UserID(c); ok {
		adminID = &id
	}
	ctx := c.Request.Context()

	if req.SessionCode != "" {
		s, err := h.repo.Create(ctx, NormalizeCode(req.SessionCode), createdBy, adminID, h.opts.VotesPerParticipant)
		if errors.Is(err, models.ErrSessionCodeTaken) {
			response.Conflict(c, "Session code already in use")
			return
		}
		if err != nil {
			h.logger.Error("create session", zap.Error(err))
			response.Internal(c, "Database error")
			return
		}
		h.created(c, s)
		return
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := GenerateCode(h.opts.CodeLength)
		if err != nil {
			h.logger.Error("generate session code", zap.Error(err))
			response.Internal(c, "Failed to create session")
			return
		}
		s, err := h.repo.Create(ctx, code, createdBy, adminID, h.opts.VotesPerParticipant)
		if errors.Is(err, models.ErrSessionCodeTaken) {
			continue
		}
		if err != nil {
			h.logger.Error("create session", zap.Error(err))
			response.Internal(c, "Database error")
			return
		}
		h.created(c, s)
		return
	}
	h.logger.Warn("session code space exhausted", zap.Int("code_length", h.opts.CodeLength))
	response.Conflict(c, "Could not allocate a session code, try again")
}

func (h *Handler) created(c *gin.Context, s *models.Session) {
	h.logger.Info("session created", zap.Int64("session_id", s.ID), zap.String("code", s.Code))
	response.Created(c, gin.H{"session_id": s.ID, "session_code": s.Code})
}

// GetByCode handles GET /meetupQA/code/:code. It is the polled snapshot.
func (h *Handler) GetByCode(c *gin.Context) {
	code := NormalizeCode(c.Param("code"))
	if code == "" {
		response.BadRequest(c, "session code is required")
		return
	}
	ctx := c.Request.Context()

	s, err := h.repo.GetActiveByCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found or inactive")
		return
	}
	if err != nil {
		h.logger.Error("get session", zap.Error(err), zap.String("code", code))
		response.Internal(c, "Database error")
		return
	}

	now := h.now()
	remaining := s.RemainingSeconds(now)
	if remaining != nil && *remaining == 0 {
		flipped, err := h.repo.OpenTimeVoteIfExpired(ctx, s.ID)
		if err != nil {
			h.logger.Warn("open expired time vote", zap.Error(err), zap.Int64("session_id", s.ID))
		} else if flipped {
			h.updated(s.ID, "time_vote_opened")
		}
		s.TimeVoteActive = true
	}

	board, err := h.repo.Board(ctx, s.ID, s.QuestionsSorted)
	if err != nil {
		h.logger.Error("load board", zap.Error(err), zap.Int64("session_id", s.ID))
		response.Internal(c, "Database error")
		return
	}

	snap := models.Snapshot{
		Session:           s,
		Participants:      board.Participants,
		Questions:         board.Pending,
		ActiveQuestion:    board.Active,
		FinishedQuestions: board.Finished,
		Replies:           board.Replies,
		TimerInfo: models.TimerInfo{
			RemainingSeconds:     remaining,
			IsTimeVoteActive:     s.TimeVoteActive,
			TimerDurationSeconds: s.TimerDurationSeconds,
		},
		GrabAttentionTriggered: s.GrabAttentionTriggered,
		ReportGenerated:        s.ReportGenerated,
		IsQuestionInputEnabled: s.QuestionInputEnabled,
		IsDiscussionStarted:    s.DiscussionStarted,
		IsQuestionsSorted:      s.QuestionsSorted,
	}
	if s.TimeVoteActive {
		if snap.TimeVoteInfo.Votes, err = h.repo.TimeVoteCounts(ctx, s.ID); err != nil {
			h.logger.Error("time vote counts", zap.Error(err), zap.Int64("session_id", s.ID))
			response.Internal(c, "Database error")
			return
		}
		if name := strings.TrimSpace(c.Query("participant_name")); name != "" {
			if snap.TimeVoteInfo.HasVoted, err = h.repo.HasTimeVoted(ctx, s.ID, name); err != nil {
				h.logger.Error("has time voted", zap.Error(err), zap.Int64("session_id", s.ID))
				response.Internal(c, "Database error")
				return
			}
		}
	}
	response.OK(c, snap)
}

// End handles PUT /meetupQA/:session_id/end.
func (h *Handler) End(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	reportKey, err := h.repo.End(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("end session", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Failed to end session")
		return
	}
	h.attention.Cancel(id)
	h.hub.Notify(id, realtime.EventSessionEnded, gin.H{"session_id": id})

	if reportKey != nil && h.reports != nil {
		if err := h.reports.DeleteReport(ctx, *reportKey); err != nil {
			h.logger.Warn("delete report object", zap.Error(err), zap.String("key", *reportKey))
		}
	}
	h.logger.Info("session ended", zap.Int64("session_id", id))
	response.OK(c, gin.H{"message": "Session ended and all data deleted"})
}

// SetTimer handles POST /meetupQA/:session_id/timer.
func (h *Handler) SetTimer(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req TimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "minutes must be a positive number")
		return
	}
	d := time.Duration(req.Minutes * float64(time.Minute)).Round(time.Second)
	if d < time.Second {
		response.BadRequest(c, "minutes must be a positive number")
		return
	}

	start, end, err := h.repo.SetTimer(c.Request.Context(), id, d)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("set timer", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	h.updated(id, "timer_set")
	response.OK(c, gin.H{
		"message":   "Timer set",
		"startTime": start,
		"endTime":   end,
		"duration":  int(d / time.Second),
	})
}

// StartTimeVote handles POST /meetupQA/:session_id/time-vote/start.
func (h *Handler) StartTimeVote(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	err := h.repo.StartTimeVote(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("start time vote", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	h.updated(id, "time_vote_started")
	response.OK(c, gin.H{"message": "Time vote started", "votes": models.TimeVoteCounts{}})
}

// EndTimeVote handles POST /meetupQA/:session_id/time-vote/end.
func (h *Handler) EndTimeVote(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	err := h.repo.EndTimeVote(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("end time vote", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	h.updated(id, "time_vote_ended")
	response.OK(c, gin.H{"message": "Time vote ended"})
}

// CastTimeVote handles POST /meetupQA/:session_id/time-vote.
func (h *Handler) CastTimeVote(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req TimeVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "vote must be yes or no")
		return
	}
	name := strings.TrimSpace(req.ParticipantName)
	vote := strings.ToLower(strings.TrimSpace(req.Vote))
	if name == "" || vote == "" {
		response.BadRequest(c, "Missing participant name or vote")
		return
	}

	counts, err := h.repo.CastTimeVote(c.Request.Context(), id, name, vote)
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "Session not found")
		return
	case errors.Is(err, models.ErrTimeVoteInactive):
		response.BadRequest(c, "Time voting is not active for this session")
		return
	case err != nil:
		h.logger.Error("cast time vote", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	h.updated(id, "time_vote_cast")
	response.OK(c, gin.H{"message": "Vote recorded", "votes": counts})
}

// FinishActive handles PUT /meetupQA/:session_id/finish-active.
func (h *Handler) FinishActive(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	updated, err := h.repo.FinishActive(ctx, id)
	if err != nil {
		h.logger.Error("finish active question", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	if err := h.repo.ClearTimeVotes(ctx, id); err != nil {
		h.logger.Warn("clear time votes", zap.Error(err), zap.Int64("session_id", id))
	}
	h.updated(id, "question_finished")
	response.OK(c, gin.H{"message": "Active question finished", "updated": updated})
}

// GrabAttention handles POST /meetupQA/:session_id/grab-attention.
func (h *Handler) GrabAttention(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req AttentionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.AdminName)
	if name == "" {
		if p := Requester(c); p != nil {
			name = p.Name
		}
	}
	if name == "" {
		response.BadRequest(c, "admin_name is required")
		return
	}

	trigger := fmt.Sprintf("%s-%d", name, h.now().UnixMilli())
	err := h.repo.TriggerAttention(c.Request.Context(), id, trigger)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found or inactive")
		return
	}
	if err != nil {
		h.logger.Error("grab attention", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	h.attention.Schedule(id, trigger)
	h.hub.Notify(id, realtime.EventGrabAttention, gin.H{"trigger": trigger})
	response.OK(c, gin.H{"message": "Attention triggered", "trigger": trigger})
}

// GenerateReport handles POST /meetupQA/:session_id/generate-report.
func (h *Handler) GenerateReport(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	code, err := h.repo.MarkReportRequested(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found or inactive")
		return
	}
	if err != nil {
		h.logger.Error("mark report", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}

	queued := false
	if h.jobs != nil && h.reports != nil {
		requestedBy := ""
		if p := Requester(c); p != nil {
			requestedBy = p.Name
		}
		err := h.jobs.EnqueueReport(ctx, queue.ReportPayload{SessionID: id, SessionCode: code, RequestedBy: requestedBy})
		if err != nil {
			h.logger.Error("enqueue report", zap.Error(err), zap.Int64("session_id", id))
		} else {
			queued = true
		}
	}
	h.updated(id, "report_generated")
	response.OK(c, gin.H{"message": "Report generated", "queued": queued})
}

// ReportURL handles GET /meetupQA/:session_id/report.
func (h *Handler) ReportURL(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	if h.reports == nil {
		response.ServiceUnavailable(c, "Report storage is not configured")
		return
	}
	ctx := c.Request.Context()
	s, err := h.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("get session", zap.Error(err), zap.Int64("session_id", id))
		response.Internal(c, "Database error")
		return
	}
	if s.ReportKey == nil {
		response.NotFound(c, "No report generated yet")
		return
	}
	url, err := h.reports.PresignReport(ctx, *s.ReportKey)
	if err != nil {
		h.logger.Error("presign report", zap.Error(err), zap.String("key", *s.ReportKey))
		response.Internal(c, "Failed to create download link")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_seconds": int(h.reports.PresignExpire() / time.Second)})
}

func (h *Handler) setFlag(c *gin.Context, flag Flag, value bool, reason string) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	err := h.repo.SetFlag(c.Request.Context(), id, flag, value)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "Session not found")
		return
	}
	if err != nil {
		h.logger.Error("set session flag", zap.Error(err), zap.Int64("session_id", id), zap.String("flag", string(flag)))
		response.Internal(c, "Database error")
		return
	}
	h.updated(id, reason)
	response.OK(c, gin.H{"message": "Session updated", string(flag): value})
}

// ToggleQuestionInput handles PUT /meetupQA/:session_id/toggle-question-input.
func (h *Handler) ToggleQuestionInput(c *gin.Context) {
	var req QuestionInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "enabled must be a boolean")
		return
	}
	h.setFlag(c, FlagQuestionInput, *req.Enabled, "question_input_toggled")
}

// StartDiscussion handles PUT /meetupQA/:session_id/start-discussion.
func (h *Handler) StartDiscussion(c *gin.Context) {
	h.setFlag(c, FlagDiscussionStarted, true, "discussion_started")
}

// SortQuestions handles PUT /meetupQA/:session_id/sort-questions.
func (h *Handler) SortQuestions(c *gin.Context) {
	var req SortRequest
	_ = c.ShouldBindJSON(&req)
	sorted := true
	if req.Sorted != nil {
		sorted = *req.Sorted
	}
	h.setFlag(c, FlagQuestionsSorted, sorted, "questions_sorted")
}
