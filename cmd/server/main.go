// Package main runs the Meetup Q&A HTTP server with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meetup-qa/backend/config"
	"github.com/meetup-qa/backend/internal/auth"
	"github.com/meetup-qa/backend/internal/captcha"
	"github.com/meetup-qa/backend/internal/leads"
	"github.com/meetup-qa/backend/internal/participants"
	"github.com/meetup-qa/backend/internal/questions"
	"github.com/meetup-qa/backend/internal/realtime"
	"github.com/meetup-qa/backend/internal/replies"
	"github.com/meetup-qa/backend/internal/router"
	"github.com/meetup-qa/backend/internal/sessions"
	"github.com/meetup-qa/backend/pkg/database"
	"github.com/meetup-qa/backend/pkg/queue"
	"github.com/meetup-qa/backend/pkg/redis"
	"github.com/meetup-qa/backend/pkg/storage"
)

func main() {
	started := time.Now()
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        20,
		MaxConnLifetime: time.Hour,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ReportsBucket:        cfg.AWS.ReportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Warn("s3 disabled, session reports unavailable", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Host accounts
	authRepo := auth.NewRepository(pool)
	verifier := captcha.NewVerifier(cfg.Captcha.SecretKey, cfg.Captcha.VerifyURL, logger)
	authHandler := auth.NewHandler(authRepo, jwtService, verifier, jobQueue, cfg.Server.AppURL, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	attention := sessions.NewAttention(
		time.Duration(cfg.QA.AttentionResetSec)*time.Second,
		sessionRepo.ClearAttention,
		func(sessionID int64) {
			hub.Notify(sessionID, realtime.EventSessionUpdated, gin.H{"reason": "attention_cleared"})
		},
		logger,
	)
	defer attention.Stop()

	sessionOpts := sessions.Options{CodeLength: cfg.QA.CodeLength, VotesPerParticipant: cfg.QA.VotesPerParticipant}
	var sessionHandler *sessions.Handler
	if s3Client != nil {
		sessionHandler = sessions.NewHandler(sessionRepo, hub, attention, jobQueue, s3Client, sessionOpts, logger)
	} else {
		sessionHandler = sessions.NewHandler(sessionRepo, hub, attention, nil, nil, sessionOpts, logger)
	}

	participantRepo := participants.NewRepository(pool)
	questionRepo := questions.NewRepository(pool)
	replyRepo := replies.NewRepository(pool)
	leadRepo := leads.NewRepository(pool)

	r, err := router.New(router.Handlers{
		Auth:         authHandler,
		Sessions:     sessionHandler,
		Participants: participants.NewHandler(participantRepo, hub, cfg.QA.VotesPerParticipant, logger),
		Questions:    questions.NewHandler(questionRepo, participantRepo, hub, logger),
		Replies:      replies.NewHandler(replyRepo, participantRepo, hub, cfg.QA.ReplyMaxLength, logger),
		Leads:        leads.NewHandler(leadRepo, logger),
	}, router.Deps{
		Origins:   cfg.Server.Origins(),
		JWT:       jwtService,
		Staff:     participantRepo,
		WebSocket: realtime.ServeWs(hub, participantRepo, realtime.NewUpgrader(cfg.Server.Origins()), logger),
		DB:        pool,
		Started:   started,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
