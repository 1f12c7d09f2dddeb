package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/repository"
)

type applicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) repository.ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Upsert(ctx context.Context, app *domain.Application) error {
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.LastTransitionAt = now

	// Re-application resets the row back to a clean PENDING state: the old
	// submission ref, decision stamp and reminder stamp belong to the
	// previous application.
	query := `INSERT INTO applications (applicant_id, display_name, username, status, created_at, last_transition_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (applicant_id) DO UPDATE
	          SET display_name = EXCLUDED.display_name,
	              username = EXCLUDED.username,
	              status = EXCLUDED.status,
	              submission_ref = NULL,
	              decided_by = NULL,
	              reminder_sent_at = NULL,
	              created_at = EXCLUDED.created_at,
	              last_transition_at = EXCLUDED.last_transition_at`
	_, err := r.db.ExecContext(ctx, query,
		app.ApplicantID, app.DisplayName, app.Username, app.Status, app.CreatedAt, app.LastTransitionAt)
	return err
}

func (r *applicationRepository) GetByApplicant(ctx context.Context, applicantID int64) (*domain.Application, error) {
	app := &domain.Application{}
	query := `SELECT applicant_id, display_name, username, status, submission_ref, decided_by,
	                 reminder_sent_at, created_at, last_transition_at
	          FROM applications WHERE applicant_id = $1`
	err := r.db.QueryRowContext(ctx, query, applicantID).Scan(
		&app.ApplicantID, &app.DisplayName, &app.Username, &app.Status, &app.SubmissionRef,
		&app.DecidedBy, &app.ReminderSentAt, &app.CreatedAt, &app.LastTransitionAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (r *applicationRepository) Transition(ctx context.Context, applicantID int64, from, to domain.ApplicationStatus, decidedBy *int64) (bool, error) {
	query := `UPDATE applications
	          SET status = $1, decided_by = COALESCE($2, decided_by), last_transition_at = $3
	          WHERE applicant_id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, to, decidedBy, time.Now().UTC(), applicantID, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *applicationRepository) SetSubmission(ctx context.Context, applicantID int64, submissionRef string) (bool, error) {
	query := `UPDATE applications
	          SET status = $1, submission_ref = $2, last_transition_at = $3
	          WHERE applicant_id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query,
		domain.ApplicationStatusSubmitted, submissionRef, time.Now().UTC(), applicantID, domain.ApplicationStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *applicationRepository) MarkReminded(ctx context.Context, applicantID int64, at time.Time) error {
	query := `UPDATE applications SET reminder_sent_at = $1 WHERE applicant_id = $2`
	_, err := r.db.ExecContext(ctx, query, at, applicantID)
	return err
}

func (r *applicationRepository) ListStale(ctx context.Context, status domain.ApplicationStatus, olderThan time.Time) ([]domain.Application, error) {
	query := `SELECT applicant_id, display_name, username, status, submission_ref, decided_by,
	                 reminder_sent_at, created_at, last_transition_at
	          FROM applications WHERE status = $1 AND last_transition_at < $2`
	return r.list(ctx, query, status, olderThan)
}

func (r *applicationRepository) ListByStatus(ctx context.Context, status domain.ApplicationStatus) ([]domain.Application, error) {
	query := `SELECT applicant_id, display_name, username, status, submission_ref, decided_by,
	                 reminder_sent_at, created_at, last_transition_at
	          FROM applications WHERE status = $1
	          ORDER BY last_transition_at ASC`
	return r.list(ctx, query, status)
}

func (r *applicationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		var app domain.Application
		if err := rows.Scan(&app.ApplicantID, &app.DisplayName, &app.Username, &app.Status,
			&app.SubmissionRef, &app.DecidedBy, &app.ReminderSentAt, &app.CreatedAt, &app.LastTransitionAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
