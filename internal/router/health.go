package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-qa/backend/pkg/response"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
}

func health(db pinger, started time.Time, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := HealthStatus{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(started).Seconds()),
			Database:      "OK",
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Error("health check: database ping", zap.Error(err))
			body.Status = "error"
			body.Database = "ERROR"
			c.JSON(http.StatusInternalServerError, response.Body{Success: false, Data: body, Error: "database unavailable"})
			return
		}
		response.OK(c, body)
	}
}
