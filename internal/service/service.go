package service

import (
	"context"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/voice"
)

// ApplicationService owns the application state machine. Each operation is
// one atomic read-check-write for a single applicant.
type ApplicationService interface {
	// HandleJoinRequest opens a PENDING application (or refreshes an
	// existing one in place) and arms the expiry timer.
	HandleJoinRequest(ctx context.Context, applicantID int64, displayName, username string) error

	// HandleVoiceSubmission screens the audio and, on a passing verdict,
	// moves PENDING -> SUBMITTED. submissionRef identifies the audio
	// artifact at the transport (the Telegram voice file ID) so moderators
	// can listen to it; it is persisted with the record. Returns the verdict
	// and whether the submission was accepted for review. Submissions
	// without a live PENDING application are ignored.
	HandleVoiceSubmission(ctx context.Context, applicantID int64, audio []byte, submissionRef string) (voice.Verdict, bool, error)

	// ExpirePending fires the timeout transition: PENDING -> EXPIRED if the
	// application is still pending, otherwise a no-op.
	ExpirePending(ctx context.Context, applicantID int64) error
}

// ModerationService is the human decision gateway.
type ModerationService interface {
	// Decide applies an approve/reject decision. Unauthorized actors get
	// domain.ErrNotAuthorized and cause no state change; decisions on
	// terminal records are no-ops returning the current status.
	Decide(ctx context.Context, actorID, applicantID int64, decision domain.Decision) (domain.ApplicationStatus, error)

	// ListApplications returns all applications currently in a status.
	ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]domain.Application, error)

	// IsModerator reports allow-list membership.
	IsModerator(actorID int64) bool
}

// Notifier delivers outbound messages. Implementations report failures to
// the caller; they are never fatal to a committed transition.
type Notifier interface {
	SendJoinInstructions(ctx context.Context, app *domain.Application) error
	SendReminder(ctx context.Context, app *domain.Application) error
	SendExpiryNotice(ctx context.Context, app *domain.Application) error
	SendSubmissionReply(ctx context.Context, applicantID int64, verdict voice.Verdict) error
	SendDecisionNotice(ctx context.Context, applicantID int64, decision domain.Decision) error

	// Moderation channel
	AnnounceJoinRequest(ctx context.Context, app *domain.Application) error
	RequestReview(ctx context.Context, app *domain.Application, verdict voice.Verdict) error
	NotifyModerators(ctx context.Context, text string) error
}

// AccessGranter admits or turns away an applicant at the gated destination.
type AccessGranter interface {
	GrantAccess(ctx context.Context, applicantID int64) error
	DenyAccess(ctx context.Context, applicantID int64) error
}

// AlertService mirrors operational warnings to the moderators' inbox.
type AlertService interface {
	SendModeratorAlert(ctx context.Context, subject, body string) error
}

// TimeoutScheduler arms the per-applicant expiry timer.
type TimeoutScheduler interface {
	Schedule(applicantID int64)
}

// VoiceEvaluator screens a raw voice note. *voice.Evaluator is the
// production implementation.
type VoiceEvaluator interface {
	Evaluate(raw []byte) voice.Verdict
}
