package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// QuestController serves the platform's quest contract.
type QuestController struct {
	quests *services.QuestService
}

// NewQuestController creates a new QuestController instance.
func NewQuestController(quests *services.QuestService) *QuestController {
	return &QuestController{quests: quests}
}

type questSummary struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	TotalTimes int    `json:"totalTimes"`
}

// List returns the quest catalog in the platform's shape.
func (q *QuestController) List(ctx *gin.Context) {
	catalog := services.QuestCatalog()
	out := make([]questSummary, 0, len(catalog))
	for _, def := range catalog {
		out = append(out, questSummary{ID: def.ID, Title: def.Title, TotalTimes: def.TotalTimes})
	}
	utils.Payload(ctx, out)
}

// Check reports the user's progress on the requested quests.
func (q *QuestController) Check(ctx *gin.Context) {
	var req struct {
		UUID     flexID     `json:"uuid"`
		QuestIDs []questRef `json:"questIds"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	if req.UUID == "" {
		badRequest(ctx, "Invalid UUID provided")
		return
	}
	if req.QuestIDs == nil {
		badRequest(ctx, "Invalid questIds provided")
		return
	}

	ids := make([]int, len(req.QuestIDs))
	for i, ref := range req.QuestIDs {
		ids[i] = int(ref)
	}
	checks, err := q.quests.CheckAgainstCatalog(ctx.Request.Context(), req.UUID.String(), ids)
	if err != nil {
		respondError(ctx, err, "quest check")
		return
	}
	utils.Payload(ctx, checks)
}

// Update writes quest progress reported by the platform.
func (q *QuestController) Update(ctx *gin.Context) {
	var req struct {
		UUID        flexID `json:"uuid"`
		QuestID     flexID `json:"questId"`
		Progress    *int   `json:"progress"`
		IsCompleted *bool  `json:"isCompleted"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	if req.UUID == "" {
		badRequest(ctx, "Invalid UUID provided")
		return
	}
	if req.QuestID == "" {
		badRequest(ctx, "Invalid questId provided")
		return
	}

	row, err := q.quests.UpsertProgress(ctx.Request.Context(), req.UUID.String(), req.QuestID.String(), req.Progress, req.IsCompleted)
	if err != nil {
		respondError(ctx, err, "quest update")
		return
	}
	utils.Payload(ctx, gin.H{
		"questId":     req.QuestID.String(),
		"progress":    row.Progress,
		"isCompleted": row.IsCompleted,
		"completedAt": row.CompletedAt,
	})
}

// Start marks the moment the user joined the quest.
func (q *QuestController) Start(ctx *gin.Context) {
	var req struct {
		UUID flexID `json:"uuid"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.UUID == "" {
		badRequest(ctx, "Invalid UUID provided")
		return
	}

	startedAt, err := q.quests.StartQuest(req.UUID.String())
	if err != nil {
		respondError(ctx, err, "quest start")
		return
	}
	utils.Payload(ctx, gin.H{
		"result":    true,
		"startDate": startedAt.UnixMilli(),
	})
}
