package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kerhoff/PillboT/internal/alarm"
	"github.com/Kerhoff/PillboT/internal/api"
	"github.com/Kerhoff/PillboT/internal/config"
	"github.com/Kerhoff/PillboT/internal/handlers"
	"github.com/Kerhoff/PillboT/internal/repository/postgres"
	"github.com/Kerhoff/PillboT/internal/service"
	"github.com/Kerhoff/PillboT/internal/telegram"
	"github.com/Kerhoff/PillboT/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting PillboT...")

	loc, err := cfg.Location()
	if err != nil {
		l.Fatalf("Failed to resolve timezone: %v", err)
	}

	// Database
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate("migrations"); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	medicineRepo := postgres.NewMedicineRepository(db.DB)
	scheduleRepo := postgres.NewScheduleRepository(db.DB)
	intakeRepo := postgres.NewIntakeRepository(db.DB)

	// Service layer
	svc := service.New(db.DB, l, loc, medicineRepo, scheduleRepo, intakeRepo)

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	// Reminder engine. The timer calls back into the engine on every fire,
	// so it is bound after both exist.
	timer := alarm.NewClockTimer(l)
	notifier := telegram.NewNotifier(bot, l)
	engine := alarm.NewEngine(timer, svc, notifier, l, loc)
	timer.Bind(engine.OnFire)

	// Register command handlers
	bot.RegisterCommand("start", handlers.NewStartHandler(l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Medicine handlers
	bot.RegisterCommand("addmed", handlers.NewAddMedicineHandler(svc, l))
	bot.RegisterCommand("meds", handlers.NewMedicinesListHandler(svc, l))
	bot.RegisterCommand("delmed", handlers.NewMedicineDeleteHandler(svc, engine, l))

	// Schedule handlers
	bot.RegisterCommand("schedule", handlers.NewScheduleAddHandler(svc, engine, l))
	bot.RegisterCommand("pause", handlers.NewSchedulePauseHandler(svc, engine, l))
	bot.RegisterCommand("resume", handlers.NewScheduleResumeHandler(svc, engine, l))
	bot.RegisterCommand("delschedule", handlers.NewScheduleDeleteHandler(svc, engine, l))

	// Intake handlers
	bot.RegisterCommand("taken", handlers.NewTakenHandler(svc, l))
	bot.RegisterCommand("history", handlers.NewHistoryHandler(svc, l))
	bot.RegisterCommand("missed", handlers.NewMissedHandler(svc, l))
	bot.RegisterCallback("taken", handlers.NewTakenCallbackHandler(svc, l))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Re-arm reminders for every enabled schedule. Timers do not survive a
	// restart, so this sweep is what keeps long-running reminders alive.
	recovery := alarm.NewRecovery(engine, scheduleRepo, l)
	recoverCtx, recoverCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := recovery.RecoverAll(recoverCtx); err != nil {
		l.Errorf("Recovery finished with errors: %v", err)
	}
	recoverCancel()

	// Start HTTP server for the JSON API and metrics
	apiServer := api.NewServer(svc, engine, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
		}
	}()

	l.Info("PillboT started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP server...")
	httpServer.Close()

	l.Info("PillboT stopped")
}
