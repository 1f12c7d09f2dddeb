package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"

	"voicegate-backend/internal/alerts"
	"voicegate-backend/internal/config"
	"voicegate-backend/internal/jobs"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/repository/postgres"
	"voicegate-backend/internal/scheduler"
	"voicegate-backend/internal/service"
	"voicegate-backend/internal/timeout"
	"voicegate-backend/internal/transport/telegram"
	"voicegate-backend/internal/voice"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-stale-pending', 'send-pending-reminders', 'all')")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting voicegate sweep runner...", "log_level", cfg.Log.Level)

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

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}
	notifier := telegram.NewNotifier(botAPI, cfg.Telegram, cfg.Verification.PendingTimeout)

	var alertSvc service.AlertService
	if cfg.Alerts.Enabled {
		alertSvc = alerts.NewSendGridAlertService(cfg.Alerts.SendGridAPIKey, cfg.Alerts.FromEmail, cfg.Alerts.FromName, cfg.Alerts.ModeratorEmail)
	} else {
		alertSvc = alerts.NewDisabledAlertService()
	}

	// The sweep drives expiry through the same state machine the server
	// uses; its timers only matter in the long-running server process.
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

	jobRunner := jobs.NewJobRunner(store, appSvc, notifier, cfg)

	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()
	logger.Info("Sweep scheduler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down sweep scheduler...")
	cronScheduler.Stop()
	logger.Info("Sweep scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "expire-stale-pending":
		jobRunner.ExpireStalePending()
	case "send-pending-reminders":
		jobRunner.SendPendingReminders()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-stale-pending\n")
		fmt.Printf("  - send-pending-reminders\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
