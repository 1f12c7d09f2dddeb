package jobs

import (
	"voicegate-backend/internal/config"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/repository"
	"voicegate-backend/internal/service"
)

// JobRunner coordinates the sweep jobs. The in-process timers handle the
// common case; the sweeps cover timers lost to a restart and send the
// mid-window reminder.
type JobRunner struct {
	repo     repository.ApplicationRepository
	appSvc   service.ApplicationService
	notifier service.Notifier
	config   *config.Config
}

func NewJobRunner(repo repository.ApplicationRepository, appSvc service.ApplicationService, notifier service.Notifier, cfg *config.Config) *JobRunner {
	return &JobRunner{
		repo:     repo,
		appSvc:   appSvc,
		notifier: notifier,
		config:   cfg,
	}
}

// Config returns the loaded configuration (used by the cron scheduler).
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every sweep job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireStalePending()
	jr.SendPendingReminders()
}
