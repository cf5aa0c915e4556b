package controllers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// PlatformController serves the outbox and the platform login-code routes.
type PlatformController struct {
	events   *services.EventService
	platform *services.PlatformService
}

// NewPlatformController creates a new PlatformController instance.
func NewPlatformController(events *services.EventService, platform *services.PlatformService) *PlatformController {
	return &PlatformController{events: events, platform: platform}
}

// PostEvent queues a platform notification.
func (p *PlatformController) PostEvent(ctx *gin.Context) {
	var req struct {
		UserID    flexID          `json:"userId"`
		EventType string          `json:"eventType"`
		EventData json.RawMessage `json:"eventData"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.EventType) == "" {
		badRequest(ctx, "userId and eventType are required")
		return
	}

	event, err := p.events.Emit(ctx.Request.Context(), req.UserID.String(), models.EventType(strings.TrimSpace(req.EventType)), req.EventData)
	if err != nil {
		respondError(ctx, err, "record platform event")
		return
	}
	utils.Payload(ctx, gin.H{
		"eventId": event.EventID,
		"status":  event.Status,
		"sentAt":  event.SentAt,
	})
}

// ListEvents returns queued and delivered events, newest first.
func (p *PlatformController) ListEvents(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(ctx, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := p.events.List(ctx.Request.Context(), services.EventFilter{
		UserID:    strings.TrimSpace(ctx.Query("userId")),
		EventType: models.EventType(strings.TrimSpace(ctx.Query("eventType"))),
		Status:    models.EventStatus(strings.TrimSpace(ctx.Query("status"))),
	}, limit)
	if err != nil {
		respondError(ctx, err, "list platform events")
		return
	}
	utils.Payload(ctx, events)
}

// RequestCode issues a temporary platform login code.
func (p *PlatformController) RequestCode(ctx *gin.Context) {
	var req struct {
		UUID flexID `json:"uuid"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.UUID == "" {
		badRequest(ctx, "Invalid UUID provided")
		return
	}

	result, err := p.platform.RequestCode(ctx.Request.Context(), req.UUID.String())
	if err != nil {
		respondError(ctx, err, "request platform code")
		return
	}
	utils.Payload(ctx, result)
}

// Validate checks a request code or platform uuid.
func (p *PlatformController) Validate(ctx *gin.Context) {
	var req struct {
		UUID        flexID `json:"uuid"`
		RequestCode string `json:"requestCode"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}

	result, err := p.platform.Validate(req.RequestCode, req.UUID.String())
	if err != nil {
		respondError(ctx, err, "validate platform identity")
		return
	}
	utils.Payload(ctx, result)
}
