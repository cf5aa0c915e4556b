package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/questmock/config"
	"github.com/cppla/questmock/utils"
)

const pingTimeout = 2 * time.Second

// HealthController reports process and dependency health.
type HealthController struct {
	db      *gorm.DB
	cfg     config.AppConfig
	started time.Time
}

// NewHealthController creates a new HealthController instance.
func NewHealthController(db *gorm.DB, cfg config.AppConfig) *HealthController {
	return &HealthController{db: db, cfg: cfg, started: time.Now()}
}

// Health answers 200 while the database is reachable and 503 otherwise.
// Redis is optional and only reported.
func (h *HealthController) Health(ctx *gin.Context) {
	status, code := "ok", http.StatusOK
	database := h.pingDatabase(ctx.Request.Context())
	if database != "connected" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	ctx.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":      time.Since(h.started).Seconds(),
		"environment": h.cfg.Environment,
		"version":     h.cfg.Version,
		"service":     h.cfg.ServiceName,
		"database":    database,
		"redis":       pingRedis(ctx.Request.Context()),
	})
}

func (h *HealthController) pingDatabase(parent context.Context) string {
	if h.db == nil {
		return "disconnected"
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return "error"
	}
	ctx, cancel := context.WithTimeout(parent, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		utils.Sugar.Warnw("database ping failed", "error", err)
		return "error"
	}
	return "connected"
}

func pingRedis(parent context.Context) string {
	rc := utils.GetRedis()
	if rc == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(parent, pingTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		return "error"
	}
	return "connected"
}
