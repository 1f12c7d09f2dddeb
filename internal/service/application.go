package service

import (
	"context"
	"fmt"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/repository"
	"voicegate-backend/internal/voice"
)

type applicationService struct {
	repo      repository.ApplicationRepository
	notifier  Notifier
	evaluator VoiceEvaluator
	sched     TimeoutScheduler
	granter   AccessGranter
	alerts    AlertService
	locks     *KeyedMutex
}

func NewApplicationService(
	repo repository.ApplicationRepository,
	notifier Notifier,
	evaluator VoiceEvaluator,
	sched TimeoutScheduler,
	granter AccessGranter,
	alerts AlertService,
	locks *KeyedMutex,
) ApplicationService {
	return &applicationService{
		repo:      repo,
		notifier:  notifier,
		evaluator: evaluator,
		sched:     sched,
		granter:   granter,
		alerts:    alerts,
		locks:     locks,
	}
}

func (s *applicationService) HandleJoinRequest(ctx context.Context, applicantID int64, displayName, username string) error {
	s.locks.Lock(applicantID)

	existing, err := s.repo.GetByApplicant(ctx, applicantID)
	if err != nil && err != domain.ErrNotFound {
		s.locks.Unlock(applicantID)
		return fmt.Errorf("failed to load application: %w", err)
	}

	if existing != nil && existing.Status == domain.ApplicationStatusSubmitted {
		// Already awaiting moderation; nothing to refresh.
		s.locks.Unlock(applicantID)
		logger.Info("Join request while submission under review, ignoring", "applicant_id", applicantID)
		return nil
	}

	reapplication := existing != nil && existing.Status == domain.ApplicationStatusPending

	app := &domain.Application{
		ApplicantID: applicantID,
		DisplayName: displayName,
		Username:    username,
		Status:      domain.ApplicationStatusPending,
	}
	if reapplication {
		app.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.Upsert(ctx, app); err != nil {
		s.locks.Unlock(applicantID)
		return fmt.Errorf("failed to persist application: %w", err)
	}

	// Restart, never duplicate: a prior timer for this identity is
	// superseded by its generation counter.
	s.sched.Schedule(applicantID)
	s.locks.Unlock(applicantID)

	if reapplication {
		logger.Info("Refreshed pending application", "applicant_id", applicantID)
		return nil
	}

	if err := s.notifier.SendJoinInstructions(ctx, app); err != nil {
		logger.Warn("Failed to DM join instructions", "applicant_id", applicantID, "error", err)
		s.warnModerators(ctx, fmt.Sprintf("Failed to DM applicant %d (%s): %v", applicantID, displayName, err))
	}
	if err := s.notifier.AnnounceJoinRequest(ctx, app); err != nil {
		logger.Warn("Failed to announce join request", "applicant_id", applicantID, "error", err)
	}
	logger.Info("Opened pending application", "applicant_id", applicantID, "display_name", displayName)
	return nil
}

func (s *applicationService) HandleVoiceSubmission(ctx context.Context, applicantID int64, audio []byte, submissionRef string) (voice.Verdict, bool, error) {
	// The heuristic runs synchronously before any transition.
	verdict := s.evaluator.Evaluate(audio)

	s.locks.Lock(applicantID)

	app, err := s.repo.GetByApplicant(ctx, applicantID)
	if err == domain.ErrNotFound {
		s.locks.Unlock(applicantID)
		return verdict, false, nil
	}
	if err != nil {
		s.locks.Unlock(applicantID)
		return verdict, false, fmt.Errorf("failed to load application: %w", err)
	}
	if app.Status != domain.ApplicationStatusPending {
		// No live pending application; silently ignored.
		s.locks.Unlock(applicantID)
		logger.Debug("Voice note without pending application, ignoring", "applicant_id", applicantID, "status", app.Status)
		return verdict, false, nil
	}

	if !verdict.OK {
		// Stays PENDING; the timer keeps its remaining window.
		s.locks.Unlock(applicantID)
		if err := s.notifier.SendSubmissionReply(ctx, applicantID, verdict); err != nil {
			logger.Warn("Failed to deliver rejection reply", "applicant_id", applicantID, "error", err)
		}
		logger.Info("Voice note failed screening", "applicant_id", applicantID, "reasons", verdict.Reasons)
		return verdict, false, nil
	}

	moved, err := s.repo.SetSubmission(ctx, applicantID, submissionRef)
	s.locks.Unlock(applicantID)
	if err != nil {
		s.warnModerators(ctx, fmt.Sprintf("Store failure while recording submission for %d: %v", applicantID, err))
		return verdict, false, fmt.Errorf("failed to record submission: %w", err)
	}
	if !moved {
		// The row progressed between the read and the write (expiry won).
		return verdict, false, nil
	}
	app.Status = domain.ApplicationStatusSubmitted
	app.SubmissionRef = &submissionRef

	if err := s.notifier.SendSubmissionReply(ctx, applicantID, verdict); err != nil {
		logger.Warn("Failed to deliver submission reply", "applicant_id", applicantID, "error", err)
	}
	if err := s.notifier.RequestReview(ctx, app, verdict); err != nil {
		logger.Error("Failed to request moderator review", "applicant_id", applicantID, "error", err)
		s.warnModerators(ctx, fmt.Sprintf("Review request for %d could not be posted: %v", applicantID, err))
	}
	logger.Info("Submission accepted for review", "applicant_id", applicantID, "submission_ref", submissionRef)
	return verdict, true, nil
}

func (s *applicationService) ExpirePending(ctx context.Context, applicantID int64) error {
	s.locks.Lock(applicantID)

	app, err := s.repo.GetByApplicant(ctx, applicantID)
	if err == domain.ErrNotFound {
		s.locks.Unlock(applicantID)
		return nil
	}
	if err != nil {
		s.locks.Unlock(applicantID)
		return fmt.Errorf("failed to load application: %w", err)
	}
	if app.Status != domain.ApplicationStatusPending {
		// A submission or decision landed first; the fire is a no-op.
		s.locks.Unlock(applicantID)
		return nil
	}

	moved, err := s.repo.Transition(ctx, applicantID, domain.ApplicationStatusPending, domain.ApplicationStatusExpired, nil)
	s.locks.Unlock(applicantID)
	if err != nil {
		return fmt.Errorf("failed to expire application: %w", err)
	}
	if !moved {
		return nil
	}

	if err := s.notifier.SendExpiryNotice(ctx, app); err != nil {
		logger.Warn("Failed to deliver expiry notice", "applicant_id", applicantID, "error", err)
	}
	if err := s.granter.DenyAccess(ctx, applicantID); err != nil {
		logger.Warn("Failed to decline join request on expiry", "applicant_id", applicantID, "error", err)
	}
	logger.Info("Application expired", "applicant_id", applicantID)
	return nil
}

func (s *applicationService) warnModerators(ctx context.Context, text string) {
	if err := s.notifier.NotifyModerators(ctx, text); err != nil {
		logger.Warn("Failed to warn moderation channel", "error", err)
	}
	if s.alerts != nil {
		if err := s.alerts.SendModeratorAlert(ctx, "voicegate warning", text); err != nil {
			logger.Warn("Failed to send moderator alert email", "error", err)
		}
	}
}
