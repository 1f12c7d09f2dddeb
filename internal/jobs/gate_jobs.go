package jobs

import (
	"context"
	"time"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/logger"
)

// ExpireStalePending expires PENDING applications that outlived the
// verification window. Each row is driven through the state machine, so the
// usual guards and side effects apply; a row already expired by its
// in-process timer is a no-op here.
func (jr *JobRunner) ExpireStalePending() {
	jr.runWithRecovery("ExpireStalePending", func() {
		ctx := context.Background()
		cutoff := time.Now().UTC().Add(-jr.config.Verification.PendingTimeout)

		apps, err := jr.repo.ListStale(ctx, domain.ApplicationStatusPending, cutoff)
		if err != nil {
			logger.Error("Failed to list stale pending applications", "error", err)
			return
		}

		count := 0
		for _, app := range apps {
			if err := jr.appSvc.ExpirePending(ctx, app.ApplicantID); err != nil {
				logger.Error("Failed to expire stale application", "applicant_id", app.ApplicantID, "error", err)
				continue
			}
			count++
		}
		if count > 0 {
			logger.Info("Expired stale pending applications", "count", count)
		}
	})
}

// SendPendingReminders sends one reminder per PENDING application once the
// reminder offset has elapsed. The reminder does not reset the window.
func (jr *JobRunner) SendPendingReminders() {
	jr.runWithRecovery("SendPendingReminders", func() {
		ctx := context.Background()
		cutoff := time.Now().UTC().Add(-jr.config.Verification.ReminderAfter)

		apps, err := jr.repo.ListStale(ctx, domain.ApplicationStatusPending, cutoff)
		if err != nil {
			logger.Error("Failed to list pending applications for reminders", "error", err)
			return
		}

		count := 0
		for _, app := range apps {
			if app.ReminderSentAt != nil {
				continue
			}
			if err := jr.notifier.SendReminder(ctx, &app); err != nil {
				logger.Warn("Failed to send reminder", "applicant_id", app.ApplicantID, "error", err)
				continue
			}
			if err := jr.repo.MarkReminded(ctx, app.ApplicantID, time.Now().UTC()); err != nil {
				logger.Error("Failed to stamp reminder", "applicant_id", app.ApplicantID, "error", err)
				continue
			}
			count++
		}
		if count > 0 {
			logger.Info("Sent pending reminders", "count", count)
		}
	})
}
