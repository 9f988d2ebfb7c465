// Package router assembles the HTTP surface: middleware, health and every API route.
package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/auth"
	"github.com/meetup-qa/backend/internal/leads"
	"github.com/meetup-qa/backend/internal/middleware"
	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/internal/participants"
	"github.com/meetup-qa/backend/internal/questions"
	"github.com/meetup-qa/backend/internal/replies"
	"github.com/meetup-qa/backend/internal/sessions"
)

// Handlers groups the resource handlers mounted by New.
type Handlers struct {
	Auth         *auth.Handler
	Sessions     *sessions.Handler
	Participants *participants.Handler
	Questions    *questions.Handler
	Replies      *replies.Handler
	Leads        *leads.Handler
}

// Deps are the collaborators the router needs besides the handlers.
type Deps struct {
	Origins   []string
	JWT       *auth.JWTService
	Staff     sessions.ParticipantLookup
	WebSocket gin.HandlerFunc
	DB        pinger
	Started   time.Time
	Logger    *zap.Logger
}

const snapshotPath = "/meetup_qa/meetupQA/code/:code"

// New builds the gin engine with all routes registered.
func New(h Handlers, d Deps) (*gin.Engine, error) {
	if err := sessions.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if d.Started.IsZero() {
		d.Started = time.Now()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(d.Origins))
	// Clients poll the snapshot every few seconds.
	r.Use(middleware.Logger(d.Logger, "/health", snapshotPath))

	r.GET("/health", health(d.DB, d.Started, d.Logger))

	// Host accounts
	register := r.Group("/register")
	{
		register.POST("/signup", h.Auth.Signup)
		register.POST("/login", h.Auth.Login)
		register.POST("/password-reset", h.Auth.RequestPasswordReset)
		register.POST("/password-reset/:token", h.Auth.ConfirmPasswordReset)
	}
	r.GET("/session/check-session", h.Auth.CheckSession)

	qa := r.Group("/meetup_qa")
	qa.POST("/leads", h.Leads.Create)
	qa.GET("/ws", d.WebSocket)

	qa.POST("/meetupQA", middleware.JWT(d.JWT), middleware.RequireRole(models.RoleAdmin), h.Sessions.Create)
	qa.GET("/meetupQA/code/:code", h.Sessions.GetByCode)

	staff := sessions.RequireSessionStaff(d.Staff, false, d.Logger)
	admin := sessions.RequireSessionStaff(d.Staff, true, d.Logger)

	s := qa.Group("/meetupQA/:session_id")
	{
		s.PUT("/end", admin, h.Sessions.End)
		s.POST("/timer", staff, h.Sessions.SetTimer)
		s.POST("/time-vote/start", staff, h.Sessions.StartTimeVote)
		s.POST("/time-vote/end", staff, h.Sessions.EndTimeVote)
		s.POST("/time-vote", h.Sessions.CastTimeVote)
		s.PUT("/finish-active", staff, h.Sessions.FinishActive)
		s.POST("/grab-attention", staff, h.Sessions.GrabAttention)
		s.POST("/generate-report", staff, h.Sessions.GenerateReport)
		s.GET("/report", staff, h.Sessions.ReportURL)
		s.PUT("/toggle-question-input", staff, h.Sessions.ToggleQuestionInput)
		s.PUT("/start-discussion", staff, h.Sessions.StartDiscussion)
		s.PUT("/sort-questions", staff, h.Sessions.SortQuestions)

		// Participants check the requester themselves: moderators may not demote admins.
		s.POST("/participants", h.Participants.Join)
		s.PUT("/participants/:participant_id/moderator", h.Participants.SetModerator)
		s.DELETE("/participants/:participant_id", h.Participants.Remove)

		s.POST("/questions", h.Questions.Create)
		s.PUT("/questions/:question_id", h.Questions.Edit)
		s.DELETE("/questions/:question_id", h.Questions.Delete)
		s.PUT("/questions/:question_id/activate", staff, h.Questions.Activate)

		s.POST("/questions/:question_id/replies", h.Replies.Create)
		s.PUT("/questions/:question_id/replies/:reply_id/pin", h.Replies.TogglePin)
		s.DELETE("/questions/:question_id/replies/:reply_id", h.Replies.Delete)
	}

	qa.POST("/questions/:question_id/vote", h.Questions.Vote)
	qa.PUT("/questions/:question_id/activate", h.Questions.ActivateByQuestion)

	return r, nil
}
