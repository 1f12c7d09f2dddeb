package repository

import (
	"context"
	"time"

	"voicegate-backend/internal/domain"
)

type ApplicationRepository interface {
	// Upsert inserts a fresh PENDING application or refreshes the existing
	// row for the applicant in place. Never creates a duplicate.
	Upsert(ctx context.Context, app *domain.Application) error

	// GetByApplicant returns domain.ErrNotFound when no row exists.
	GetByApplicant(ctx context.Context, applicantID int64) (*domain.Application, error)

	// Transition moves the application from one status to another only if it
	// is still in the expected status. Returns false when the guard did not
	// hold (the row progressed concurrently or does not exist).
	Transition(ctx context.Context, applicantID int64, from, to domain.ApplicationStatus, decidedBy *int64) (bool, error)

	// SetSubmission records the submission reference while moving
	// PENDING -> SUBMITTED under the same compare-and-swap guard.
	SetSubmission(ctx context.Context, applicantID int64, submissionRef string) (bool, error)

	// MarkReminded stamps the one mid-window reminder.
	MarkReminded(ctx context.Context, applicantID int64, at time.Time) error

	// ListStale returns applications in the given status whose last
	// transition is older than the cutoff. Used by the sweep jobs.
	ListStale(ctx context.Context, status domain.ApplicationStatus, olderThan time.Time) ([]domain.Application, error)

	// ListByStatus returns all applications currently in the given status,
	// oldest transition first.
	ListByStatus(ctx context.Context, status domain.ApplicationStatus) ([]domain.Application, error)
}
