package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/internal/mailer"
	"github.com/meetup-qa/backend/internal/models"
	"github.com/meetup-qa/backend/pkg/queue"
	"github.com/meetup-qa/backend/pkg/response"
	"github.com/meetup-qa/backend/pkg/utils"
)

const (
	resetTokenBytes = 32
	resetTokenTTL   = time.Hour
)

// SignupRequest is the body for POST /register/signup.
type SignupRequest struct {
	FirstName    string `json:"first_name" binding:"required,max=100"`
	LastName     string `json:"last_name" binding:"max=100"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	CaptchaToken string `json:"captchaToken"`
}

// LoginRequest is the body for POST /register/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ResetRequest is the body for POST /register/password-reset.
type ResetRequest struct {
	Email        string `json:"email" binding:"required,email"`
	CaptchaToken string `json:"captchaToken"`
}

// ResetConfirmRequest is the body for POST /register/password-reset/:token.
type ResetConfirmRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, firstName, lastName, email, passwordHash string, role models.Role) (*models.User, error)
	SetResetToken(ctx context.Context, userID int64, token string, expires time.Time) error
	ResetPassword(ctx context.Context, token, passwordHash string) error
}

type captchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type emailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles host account endpoints.
type Handler struct {
	repo    userStore
	jwt     *JWTService
	captcha captchaVerifier
	emails  emailQueue
	appURL  string
	logger  *zap.Logger
}

// NewHandler creates an auth handler. emails may be nil when no queue is available;
// reset links are then only logged.
func NewHandler(repo userStore, jwt *JWTService, captcha captchaVerifier, emails emailQueue, appURL string, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, captcha: captcha, emails: emails, appURL: appURL, logger: logger}
}

func (h *Handler) verifyCaptcha(c *gin.Context, token string) bool {
	ok, err := h.captcha.Verify(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		h.logger.Error("captcha verification", zap.Error(err))
		response.Internal(c, "Error verifying CAPTCHA. Please try again later.")
		return false
	}
	if !ok {
		response.BadRequest(c, "CAPTCHA verification failed")
		return false
	}
	return true
}

// Signup handles POST /register/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !h.verifyCaptcha(c, req.CaptchaToken) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.repo.GetByEmail(c.Request.Context(), email); err == nil {
		response.BadRequest(c, "User already exists")
		return
	} else if !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("signup lookup", zap.Error(err))
		response.Internal(c, "Database error during sign-up")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.repo.Create(c.Request.Context(), strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), email, hash, models.RoleAdmin)
	if errors.Is(err, models.ErrEmailTaken) {
		response.BadRequest(c, "User already exists")
		return
	}
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "User registration failed")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("user registered", zap.Int64("user_id", user.ID))
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /register/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("login lookup", zap.Error(err))
		response.Internal(c, "Database error during login")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// RequestPasswordReset handles POST /register/password-reset.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !h.verifyCaptcha(c, req.CaptchaToken) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		response.BadRequest(c, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("reset lookup", zap.Error(err))
		response.Internal(c, "Database error during password reset request")
		return
	}

	token, err := utils.RandomHex(resetTokenBytes)
	if err != nil {
		h.logger.Error("reset token", zap.Error(err))
		response.Internal(c, "failed to generate reset token")
		return
	}
	if err := h.repo.SetResetToken(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		h.logger.Error("store reset token", zap.Error(err), zap.Int64("user_id", user.ID))
		response.Internal(c, "Database error while generating reset token")
		return
	}

	link := mailer.ResetURL(h.appURL, token)
	if h.emails == nil {
		h.logger.Warn("email queue unavailable, reset link not sent", zap.Int64("user_id", user.ID), zap.String("reset_url", link))
		response.OK(c, gin.H{"message": "Password reset token generated."})
		return
	}
	payload, err := mailer.PasswordReset(user.Email, user.FirstName, link)
	if err == nil {
		err = h.emails.EnqueueEmail(ctx, payload)
	}
	if err != nil {
		h.logger.Error("enqueue reset email", zap.Error(err), zap.Int64("user_id", user.ID))
		response.Internal(c, "Failed to send password reset email.")
		return
	}
	response.OK(c, gin.H{"message": "Password reset token generated and email sent."})
}

// ConfirmPasswordReset handles POST /register/password-reset/:token.
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	token := c.Param("token")
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err = h.repo.ResetPassword(c.Request.Context(), token, hash)
	if errors.Is(err, models.ErrNotFound) {
		response.BadRequest(c, "Invalid or expired token")
		return
	}
	if err != nil {
		h.logger.Error("reset password", zap.Error(err))
		response.Internal(c, "Database error while updating password.")
		return
	}
	response.OK(c, gin.H{"message": "Password successfully reset! You can now log in with your new password."})
}

// CheckSession handles GET /session/check-session. It never fails: a missing or
// invalid bearer token just reports isAuthenticated=false.
func (h *Handler) CheckSession(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		response.OK(c, gin.H{"isAuthenticated": false})
		return
	}
	claims, err := h.jwt.Validate(raw)
	if err != nil {
		response.OK(c, gin.H{"isAuthenticated": false})
		return
	}
	response.OK(c, gin.H{"isAuthenticated": true, "user": claims.User()})
}
