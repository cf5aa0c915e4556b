package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/questmock/config"
	"github.com/cppla/questmock/controllers"
	"github.com/cppla/questmock/middleware"
	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Config     config.AppConfig
	DB         *gorm.DB
	Users      *services.UserService
	Attendance *services.AttendanceService
	Quests     *services.QuestService
	Game       *services.GameService
	Events     *services.EventService
	Platform   *services.PlatformService
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; fall back to the app logger when unset
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		gl = utils.Logger
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.APIAuthHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		// wildcard origins cannot carry credentials
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	authController := controllers.NewAuthController(deps.Users, cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
	attendanceController := controllers.NewAttendanceController(deps.Attendance)
	questController := controllers.NewQuestController(deps.Quests)
	gameController := controllers.NewGameController(deps.Game, deps.Quests)
	platformController := controllers.NewPlatformController(deps.Events, deps.Platform)
	healthController := controllers.NewHealthController(deps.DB, cfg)

	apiAuth := middleware.APIAuth(cfg.APIAuthSecret)

	r.GET("/health", healthController.Health)

	api := r.Group("/api")
	api.GET("/health", healthController.Health)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(cfg.JWTSecret), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(cfg.JWTSecret), authController.Me)

	// The platform calls attendance both with and without the /api prefix
	for _, g := range []*gin.RouterGroup{api.Group("/attendance"), r.Group("/attendance")} {
		g.Use(apiAuth)
		g.POST("/check", attendanceController.Check)
		g.POST("/status", attendanceController.Status)
	}

	questGroup := api.Group("/quest")
	questGroup.Use(apiAuth)
	questGroup.POST("/attendance", attendanceController.QuestAttendance)
	questGroup.GET("/list", questController.List)
	questGroup.POST("/check", questController.Check)
	questGroup.POST("/update", questController.Update)
	questGroup.POST("/start", questController.Start)

	gameGroup := api.Group("/game")
	gameGroup.Use(middleware.OptionalAuth(cfg.JWTSecret))
	gameGroup.GET("/state", gameController.GetState)
	gameGroup.PUT("/state", gameController.UpdateState)
	gameGroup.GET("/stages", gameController.GetStages)
	gameGroup.PUT("/stages", gameController.UpdateStage)
	gameGroup.GET("/quests", gameController.GetQuests)
	gameGroup.PUT("/quests", gameController.UpdateQuest)
	gameGroup.POST("/stage/complete", gameController.CompleteStage)
	gameGroup.POST("/quest/complete", gameController.CompleteQuest)
	gameGroup.POST("/score/update", gameController.UpdateScore)

	platformGroup := api.Group("/platform")
	platformGroup.POST("/events", platformController.PostEvent)
	platformGroup.GET("/events", platformController.ListEvents)
	platformGroup.POST("/request-code", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), platformController.RequestCode)
	platformGroup.POST("/validate", platformController.Validate)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "route not found")
	})

	return r
}
