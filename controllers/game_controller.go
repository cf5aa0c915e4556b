package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// GameController serves the game client's state, stage and quest routes.
// The user comes from the request's userId or, failing that, the session token.
type GameController struct {
	game   *services.GameService
	quests *services.QuestService
}

// NewGameController creates a new GameController instance.
func NewGameController(game *services.GameService, quests *services.QuestService) *GameController {
	return &GameController{game: game, quests: quests}
}

func (g *GameController) userFromQuery(ctx *gin.Context) (string, bool) {
	userID, ok := resolveUserID(ctx, "")
	if !ok {
		badRequest(ctx, "userId is required")
	}
	return userID, ok
}

func (g *GameController) userFromBody(ctx *gin.Context, explicit flexID) (string, bool) {
	userID, ok := resolveUserID(ctx, explicit)
	if !ok {
		badRequest(ctx, "userId is required")
	}
	return userID, ok
}

// GetState returns the user's game state.
func (g *GameController) GetState(ctx *gin.Context) {
	userID, ok := g.userFromQuery(ctx)
	if !ok {
		return
	}
	state, err := g.game.GetState(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err, "get game state")
		return
	}
	utils.Success(ctx, state)
}

// UpdateState patches the user's game state.
func (g *GameController) UpdateState(ctx *gin.Context) {
	var req struct {
		UserID       flexID `json:"userId"`
		CurrentStage *int   `json:"currentStage"`
		Score        *int   `json:"score"`
		Lives        *int   `json:"lives"`
		IsPlaying    *bool  `json:"isPlaying"`
		IsPaused     *bool  `json:"isPaused"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	userID, ok := g.userFromBody(ctx, req.UserID)
	if !ok {
		return
	}

	state, err := g.game.UpdateState(ctx.Request.Context(), userID, services.StatePatch{
		CurrentStage: req.CurrentStage,
		Score:        req.Score,
		Lives:        req.Lives,
		IsPlaying:    req.IsPlaying,
		IsPaused:     req.IsPaused,
	})
	if err != nil {
		respondError(ctx, err, "update game state")
		return
	}
	utils.Success(ctx, state)
}

// GetStages lists every stage with the user's progress.
func (g *GameController) GetStages(ctx *gin.Context) {
	userID, ok := g.userFromQuery(ctx)
	if !ok {
		return
	}
	stages, err := g.game.ListStages(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err, "list stages")
		return
	}
	utils.Success(ctx, stages)
}

// UpdateStage patches one stage's progress.
func (g *GameController) UpdateStage(ctx *gin.Context) {
	var req struct {
		UserID      flexID `json:"userId"`
		StageID     int    `json:"stageId"`
		IsUnlocked  *bool  `json:"isUnlocked"`
		IsCompleted *bool  `json:"isCompleted"`
		Score       *int   `json:"score"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	userID, ok := g.userFromBody(ctx, req.UserID)
	if !ok {
		return
	}

	stage, err := g.game.UpsertStage(ctx.Request.Context(), userID, req.StageID, services.StagePatch{
		IsUnlocked:  req.IsUnlocked,
		IsCompleted: req.IsCompleted,
		Score:       req.Score,
	})
	if err != nil {
		respondError(ctx, err, "update stage")
		return
	}
	utils.Success(ctx, stage)
}

// GetQuests lists every quest with the user's progress.
func (g *GameController) GetQuests(ctx *gin.Context) {
	userID, ok := g.userFromQuery(ctx)
	if !ok {
		return
	}
	quests, err := g.quests.ListForUser(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err, "list quests")
		return
	}
	utils.Success(ctx, quests)
}

// UpdateQuest patches one quest's progress.
func (g *GameController) UpdateQuest(ctx *gin.Context) {
	var req struct {
		UserID      flexID `json:"userId"`
		QuestID     flexID `json:"questId"`
		Progress    *int   `json:"progress"`
		IsCompleted *bool  `json:"isCompleted"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	userID, ok := g.userFromBody(ctx, req.UserID)
	if !ok {
		return
	}

	row, err := g.quests.UpsertProgress(ctx.Request.Context(), userID, req.QuestID.String(), req.Progress, req.IsCompleted)
	if err != nil {
		respondError(ctx, err, "update quest")
		return
	}
	utils.Success(ctx, gin.H{
		"questId":     row.QuestID,
		"progress":    row.Progress,
		"isCompleted": row.IsCompleted,
	})
}

// CompleteStage clears a stage and returns its rewards.
func (g *GameController) CompleteStage(ctx *gin.Context) {
	var req struct {
		UserID    flexID `json:"userId"`
		StageID   int    `json:"stageId"`
		Score     int    `json:"score"`
		TimeSpent int    `json:"timeSpent"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	userID, ok := g.userFromBody(ctx, req.UserID)
	if !ok {
		return
	}

	result, err := g.game.CompleteStage(ctx.Request.Context(), userID, req.StageID, req.Score, req.TimeSpent)
	if err != nil {
		respondError(ctx, err, "complete stage")
		return
	}
	utils.SuccessMessage(ctx, "stage complete", result)
}

// CompleteQuest finishes a quest and returns its rewards.
func (g *GameController) CompleteQuest(ctx *gin.Context) {
	var req struct {
		UserID  flexID `json:"userId"`
		QuestID flexID `json:"questId"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	userID, ok := g.userFromBody(ctx, req.UserID)
	if !ok {
		return
	}

	row, rewards, err := g.quests.CompleteQuest(ctx.Request.Context(), userID, req.QuestID.String())
	if err != nil {
		respondError(ctx, err, "complete quest")
		return
	}
	utils.SuccessMessage(ctx, "quest complete", gin.H{
		"progress": row,
		"rewards":  rewards,
	})
}

// UpdateScore sets the user's score and unlocks the stages it qualifies for.
func (g *GameController) UpdateScore(ctx *gin.Context) {
	var req struct {
		UserID  flexID `json:"userId"`
		Score   *int   `json:"score"`
		StageID int    `json:"stageId"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body")
		return
	}
	userID, ok := g.userFromBody(ctx, req.UserID)
	if !ok {
		return
	}
	if req.Score == nil {
		badRequest(ctx, "score is required")
		return
	}

	state, err := g.game.UpdateScore(ctx.Request.Context(), userID, *req.Score, req.StageID)
	if err != nil {
		respondError(ctx, err, "update score")
		return
	}
	utils.Success(ctx, state)
}
