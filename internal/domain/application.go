package domain

import (
	"errors"
	"time"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusSubmitted ApplicationStatus = "SUBMITTED"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusExpired   ApplicationStatus = "EXPIRED"
)

// Terminal reports whether the status has no outgoing transitions.
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusExpired:
		return true
	}
	return false
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Application is the membership application for one applicant. There is at
// most one row per applicant; terminal rows are kept as history and reopened
// in place on a fresh join request.
type Application struct {
	ApplicantID      int64             `json:"applicant_id"`
	DisplayName      string            `json:"display_name"`
	Username         string            `json:"username"`
	Status           ApplicationStatus `json:"status"`
	SubmissionRef    *string           `json:"submission_ref,omitempty"`
	DecidedBy        *int64            `json:"decided_by,omitempty"`
	ReminderSentAt   *time.Time        `json:"reminder_sent_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	LastTransitionAt time.Time         `json:"last_transition_at"`
}

var (
	ErrNotFound      = errors.New("application not found")
	ErrNotAuthorized = errors.New("actor is not an authorized moderator")
	ErrNoSubmission  = errors.New("application has no submission awaiting review")
)
