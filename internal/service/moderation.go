package service

import (
	"context"
	"fmt"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/repository"
)

type moderationService struct {
	repo        repository.ApplicationRepository
	notifier    Notifier
	granter     AccessGranter
	isModerator func(int64) bool
	locks       *KeyedMutex
}

func NewModerationService(
	repo repository.ApplicationRepository,
	notifier Notifier,
	granter AccessGranter,
	isModerator func(int64) bool,
	locks *KeyedMutex,
) ModerationService {
	return &moderationService{
		repo:        repo,
		notifier:    notifier,
		granter:     granter,
		isModerator: isModerator,
		locks:       locks,
	}
}

func (s *moderationService) IsModerator(actorID int64) bool {
	return s.isModerator(actorID)
}

func (s *moderationService) Decide(ctx context.Context, actorID, applicantID int64, decision domain.Decision) (domain.ApplicationStatus, error) {
	if !s.isModerator(actorID) {
		logger.Warn("Decision from unauthorized actor", "actor_id", actorID, "applicant_id", applicantID)
		return "", domain.ErrNotAuthorized
	}

	s.locks.Lock(applicantID)

	app, err := s.repo.GetByApplicant(ctx, applicantID)
	if err != nil {
		s.locks.Unlock(applicantID)
		if err == domain.ErrNotFound {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to load application: %w", err)
	}

	if app.Status != domain.ApplicationStatusSubmitted {
		s.locks.Unlock(applicantID)
		if app.Status.Terminal() {
			// Idempotent: a decision on a settled record changes nothing.
			logger.Info("Decision on settled application, ignoring", "applicant_id", applicantID, "status", app.Status)
			return app.Status, nil
		}
		return app.Status, domain.ErrNoSubmission
	}

	target := domain.ApplicationStatusRejected
	if decision == domain.DecisionApprove {
		target = domain.ApplicationStatusApproved

		// The grant is part of this transition: if admitting the applicant
		// fails, the application must not read APPROVED.
		if err := s.granter.GrantAccess(ctx, applicantID); err != nil {
			s.locks.Unlock(applicantID)
			return app.Status, fmt.Errorf("failed to grant access: %w", err)
		}
	}

	moved, err := s.repo.Transition(ctx, applicantID, domain.ApplicationStatusSubmitted, target, &actorID)
	s.locks.Unlock(applicantID)
	if err != nil {
		return app.Status, fmt.Errorf("failed to record decision: %w", err)
	}
	if !moved {
		current, gerr := s.repo.GetByApplicant(ctx, applicantID)
		if gerr != nil {
			return app.Status, nil
		}
		return current.Status, nil
	}

	if decision == domain.DecisionReject {
		if err := s.granter.DenyAccess(ctx, applicantID); err != nil {
			logger.Warn("Failed to decline join request on rejection", "applicant_id", applicantID, "error", err)
		}
	}
	if err := s.notifier.SendDecisionNotice(ctx, applicantID, decision); err != nil {
		logger.Warn("Failed to deliver decision notice", "applicant_id", applicantID, "error", err)
	}
	logger.Info("Decision recorded", "applicant_id", applicantID, "actor_id", actorID, "decision", decision, "status", target)
	return target, nil
}

func (s *moderationService) ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]domain.Application, error) {
	return s.repo.ListByStatus(ctx, status)
}
