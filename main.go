package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cppla/questmock/config"
	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/pkg/lifecycle"
	"github.com/cppla/questmock/routes"
	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	utils.InitRedis(cfg)

	db, err := config.OpenDatabase(cfg, models.All()...)
	if err != nil {
		utils.Sugar.Fatalf("open database: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		utils.Sugar.Warnf("unknown timezone %q, using UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}

	events := services.NewEventService(db, cfg.OutboxMaxRetries)
	client := services.NewPlatformClient(cfg.PlatformAPIBaseURL, cfg.PlatformAPIAuthToken, cfg.PlatformEventsURL,
		time.Duration(cfg.PlatformTimeoutSec)*time.Second)

	var sender services.EventSender = services.LogSender{}
	if client.CanSendEvents() {
		sender = client
	}
	dispatcher := services.NewDispatcher(db, sender, services.DispatcherConfig{
		PollInterval:  time.Duration(cfg.OutboxPollIntervalSec) * time.Second,
		BatchSize:     cfg.OutboxBatchSize,
		BaseBackoff:   time.Duration(cfg.OutboxBaseBackoffSec) * time.Second,
		MaxBackoff:    time.Duration(cfg.OutboxMaxBackoffSec) * time.Second,
		RatePerSecond: cfg.OutboxRatePerSecond,
	})

	workers := lifecycle.NewManager()
	if err := workers.Go("outbox", dispatcher.Run); err != nil {
		utils.Sugar.Fatalf("start outbox dispatcher: %v", err)
	}

	r := routes.SetupRouter(routes.Deps{
		Config:     cfg,
		DB:         db,
		Users:      services.NewUserService(db, events),
		Attendance: services.NewAttendanceService(db, loc),
		Quests:     services.NewQuestService(db, events),
		Game:       services.NewGameService(db, events),
		Events:     events,
		Platform:   services.NewPlatformService(client, cfg.PlatformWebURL, time.Duration(cfg.RequestCodeTTLMinutes)*time.Minute),
	})

	srv := utils.NewServer(r, utils.ServerConfig{
		Addr:            ":" + cfg.AppPort,
		ShutdownTimeout: time.Duration(cfg.ShutdownTimeoutSec) * time.Second,
	})
	srv.OnShutdown("workers", func(ctx context.Context) error {
		if pending := workers.Shutdown(ctx); len(pending) > 0 {
			return fmt.Errorf("still running: %v", pending)
		}
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		utils.CloseRedis()
		return nil
	})
	srv.OnShutdown("database", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	utils.Sugar.Infof("Starting server on port %s (graceful) env=%s driver=%s", cfg.AppPort, cfg.Environment, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
