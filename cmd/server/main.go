package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"voicegate-backend/internal/alerts"
	httpapi "voicegate-backend/internal/api/http"
	"voicegate-backend/internal/config"
	"voicegate-backend/internal/jobs"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/repository/postgres"
	"voicegate-backend/internal/scheduler"
	"voicegate-backend/internal/security"
	"voicegate-backend/internal/service"
	"voicegate-backend/internal/timeout"
	"voicegate-backend/internal/transport/telegram"
	"voicegate-backend/internal/voice"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting voicegate backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Verification window", "pending_timeout", cfg.Verification.PendingTimeout, "reminder_after", cfg.Verification.ReminderAfter)

	// Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	// Telegram transport
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}
	logger.Info("Telegram bot authorized", "username", botAPI.Self.UserName)
	notifier := telegram.NewNotifier(botAPI, cfg.Telegram, cfg.Verification.PendingTimeout)

	// Alerts
	var alertSvc service.AlertService
	if cfg.Alerts.Enabled {
		alertSvc = alerts.NewSendGridAlertService(cfg.Alerts.SendGridAPIKey, cfg.Alerts.FromEmail, cfg.Alerts.FromName, cfg.Alerts.ModeratorEmail)
	} else {
		alertSvc = alerts.NewDisabledAlertService()
	}

	// Core services. The timeout scheduler and the application service
	// reference each other, so the fire func closes over the service var.
	evaluator := voice.NewEvaluator(
		cfg.Verification.MinVoiceDuration,
		cfg.Verification.SilenceFloorDBFS,
		cfg.Verification.VarianceThreshold,
	)
	locks := service.NewKeyedMutex()

	var appSvc service.ApplicationService
	timers := timeout.NewScheduler(cfg.Verification.PendingTimeout, func(ctx context.Context, applicantID int64) {
		if err := appSvc.ExpirePending(ctx, applicantID); err != nil {
			logger.Error("Expiry fire failed", "applicant_id", applicantID, "error", err)
		}
	})
	appSvc = service.NewApplicationService(store, notifier, evaluator, timers, notifier, alertSvc, locks)
	modSvc := service.NewModerationService(store, notifier, notifier, cfg.Telegram.IsModerator, locks)

	// Bot update loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bot := telegram.NewBot(botAPI, cfg.Telegram, appSvc, modSvc, cfg.Verification.MaxDownloadBytes)
	go bot.Run(ctx)

	// Ops HTTP API
	tokenManager := security.NewTokenManager(
		cfg.AdminAPI.JWTSecret,
		cfg.AdminAPI.PasswordHash,
		cfg.AdminAPI.ActorID,
		time.Duration(cfg.AdminAPI.TokenExpiry)*time.Minute,
	)
	router := mux.NewRouter()
	httpapi.NewOpsAPI(tokenManager, modSvc, db, cfg.AdminAPI.ActorID).RegisterRoutes(router)
	httpServer := &http.Server{
		Addr:    cfg.GetServerAddress(),
		Handler: router,
	}
	go func() {
		logger.Info("Ops HTTP server listening", "address", cfg.GetServerAddress())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Sweep jobs
	jobRunner := jobs.NewJobRunner(store, appSvc, notifier, cfg)
	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()

	logger.Info("voicegate backend is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	cronScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := timers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Timeout scheduler shutdown incomplete", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	logger.Info("Shutdown complete. Goodbye!")
}
