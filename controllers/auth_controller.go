package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/middleware"
	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// AuthController handles login and logout.
type AuthController struct {
	users      *services.UserService
	jwtSecret  string
	sessionTTL time.Duration
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *services.UserService, jwtSecret string, sessionTTL time.Duration) *AuthController {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthController{users: users, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

// Login resolves or creates the user by name and issues a session token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username     string               `json:"username" binding:"required"`
		PlatformData *models.PlatformLink `json:"platformData"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "username is required")
		return
	}

	user, err := a.users.ResolveOrCreateUser(ctx.Request.Context(), req.Username, req.PlatformData)
	if err != nil {
		respondError(ctx, err, "login")
		return
	}

	token, err := utils.GenerateToken(a.jwtSecret, user.UUID, user.Username, a.sessionTTL)
	if err != nil {
		utils.Sugar.Errorw("issue session token failed", "uuid", user.UUID, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	utils.SuccessMessage(ctx, "login successful", gin.H{
		"user":  user,
		"token": token,
	})
}

// Logout records a logout event for the session user and revokes the token.
func (a *AuthController) Logout(ctx *gin.Context) {
	userID, ok := middleware.SessionUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := a.users.Logout(ctx.Request.Context(), userID); err != nil {
		respondError(ctx, err, "logout")
		return
	}
	if token, expiresAt, ok := middleware.SessionToken(ctx); ok {
		utils.RevokeSession(token, expiresAt)
	}
	utils.SuccessMessage(ctx, "logged out", nil)
}

// Me returns the session user.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := middleware.SessionUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := a.users.FindByUUID(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err, "load session user")
		return
	}
	utils.Success(ctx, user)
}
