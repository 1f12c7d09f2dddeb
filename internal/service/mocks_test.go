package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/voice"
)

// fakeRepo is an in-memory ApplicationRepository with the same
// compare-and-swap semantics as the Postgres implementation. Safe for
// concurrent use so the race tests exercise the real locking discipline.
type fakeRepo struct {
	mu   sync.Mutex
	apps map[int64]*domain.Application
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{apps: make(map[int64]*domain.Application)}
}

func (r *fakeRepo) Upsert(ctx context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.LastTransitionAt = now
	stored := *app
	stored.SubmissionRef = nil
	stored.DecidedBy = nil
	stored.ReminderSentAt = nil
	r.apps[app.ApplicantID] = &stored
	return nil
}

func (r *fakeRepo) GetByApplicant(ctx context.Context, applicantID int64) (*domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[applicantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *fakeRepo) Transition(ctx context.Context, applicantID int64, from, to domain.ApplicationStatus, decidedBy *int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[applicantID]
	if !ok || app.Status != from {
		return false, nil
	}
	app.Status = to
	if decidedBy != nil {
		app.DecidedBy = decidedBy
	}
	app.LastTransitionAt = time.Now().UTC()
	return true, nil
}

func (r *fakeRepo) SetSubmission(ctx context.Context, applicantID int64, submissionRef string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[applicantID]
	if !ok || app.Status != domain.ApplicationStatusPending {
		return false, nil
	}
	app.Status = domain.ApplicationStatusSubmitted
	app.SubmissionRef = &submissionRef
	app.LastTransitionAt = time.Now().UTC()
	return true, nil
}

func (r *fakeRepo) MarkReminded(ctx context.Context, applicantID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app, ok := r.apps[applicantID]; ok {
		app.ReminderSentAt = &at
	}
	return nil
}

func (r *fakeRepo) ListStale(ctx context.Context, status domain.ApplicationStatus, olderThan time.Time) ([]domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Application
	for _, app := range r.apps {
		if app.Status == status && app.LastTransitionAt.Before(olderThan) {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByStatus(ctx context.Context, status domain.ApplicationStatus) ([]domain.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Application
	for _, app := range r.apps {
		if app.Status == status {
			out = append(out, *app)
		}
	}
	return out, nil
}

// recordingNotifier counts per-applicant deliveries; safe for concurrent use.
type recordingNotifier struct {
	mu             sync.Mutex
	joinDMs        map[int64]int
	reminders      map[int64]int
	expiryNotices  map[int64]int
	reviewRequests map[int64]int
	reviewedRefs   map[int64]string
	decisions      map[int64]domain.Decision
	announces      map[int64]int
	warnings       []string
	failJoinDM     bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		joinDMs:        make(map[int64]int),
		reminders:      make(map[int64]int),
		expiryNotices:  make(map[int64]int),
		reviewRequests: make(map[int64]int),
		reviewedRefs:   make(map[int64]string),
		decisions:      make(map[int64]domain.Decision),
		announces:      make(map[int64]int),
	}
}

func (n *recordingNotifier) SendJoinInstructions(ctx context.Context, app *domain.Application) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joinDMs[app.ApplicantID]++
	if n.failJoinDM {
		return context.DeadlineExceeded
	}
	return nil
}

func (n *recordingNotifier) SendReminder(ctx context.Context, app *domain.Application) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders[app.ApplicantID]++
	return nil
}

func (n *recordingNotifier) SendExpiryNotice(ctx context.Context, app *domain.Application) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expiryNotices[app.ApplicantID]++
	return nil
}

func (n *recordingNotifier) SendSubmissionReply(ctx context.Context, applicantID int64, verdict voice.Verdict) error {
	return nil
}

func (n *recordingNotifier) SendDecisionNotice(ctx context.Context, applicantID int64, decision domain.Decision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions[applicantID] = decision
	return nil
}

func (n *recordingNotifier) AnnounceJoinRequest(ctx context.Context, app *domain.Application) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announces[app.ApplicantID]++
	return nil
}

func (n *recordingNotifier) RequestReview(ctx context.Context, app *domain.Application, verdict voice.Verdict) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reviewRequests[app.ApplicantID]++
	if app.SubmissionRef != nil {
		n.reviewedRefs[app.ApplicantID] = *app.SubmissionRef
	}
	return nil
}

func (n *recordingNotifier) NotifyModerators(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, text)
	return nil
}

// recordingScheduler tracks Schedule calls.
type recordingScheduler struct {
	mu    sync.Mutex
	calls map[int64]int
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{calls: make(map[int64]int)}
}

func (s *recordingScheduler) Schedule(applicantID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[applicantID]++
}

func (s *recordingScheduler) count(applicantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[applicantID]
}

// stubEvaluator returns a fixed verdict regardless of input.
type stubEvaluator struct {
	verdict voice.Verdict
}

func (e stubEvaluator) Evaluate(raw []byte) voice.Verdict {
	return e.verdict
}

func passVerdict() voice.Verdict {
	return voice.Verdict{OK: true, Duration: 5 * time.Second}
}

func failVerdict(reasons ...voice.Reason) voice.Verdict {
	return voice.Verdict{OK: false, Reasons: reasons, Duration: time.Second}
}

// MockAccessGranter is a testify mock for AccessGranter.
type MockAccessGranter struct {
	mock.Mock
}

func (m *MockAccessGranter) GrantAccess(ctx context.Context, applicantID int64) error {
	args := m.Called(ctx, applicantID)
	return args.Error(0)
}

func (m *MockAccessGranter) DenyAccess(ctx context.Context, applicantID int64) error {
	args := m.Called(ctx, applicantID)
	return args.Error(0)
}

// noopGranter accepts everything; thread-safe counters.
type noopGranter struct {
	mu     sync.Mutex
	grants map[int64]int
}

func newNoopGranter() *noopGranter {
	return &noopGranter{grants: make(map[int64]int)}
}

func (g *noopGranter) GrantAccess(ctx context.Context, applicantID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[applicantID]++
	return nil
}

func (g *noopGranter) DenyAccess(ctx context.Context, applicantID int64) error {
	return nil
}

type noopAlerts struct{}

func (noopAlerts) SendModeratorAlert(ctx context.Context, subject, body string) error {
	return nil
}
