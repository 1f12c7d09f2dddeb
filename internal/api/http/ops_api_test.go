package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/security"
)

const (
	testActorID  = int64(111)
	testPassword = "ops-password"
)

type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) Decide(ctx context.Context, actorID, applicantID int64, decision domain.Decision) (domain.ApplicationStatus, error) {
	args := m.Called(ctx, actorID, applicantID, decision)
	return args.Get(0).(domain.ApplicationStatus), args.Error(1)
}

func (m *MockModerationService) ListApplications(ctx context.Context, status domain.ApplicationStatus) ([]domain.Application, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Application), args.Error(1)
}

func (m *MockModerationService) IsModerator(id int64) bool {
	args := m.Called(id)
	return args.Bool(0)
}

type apiFixture struct {
	router *mux.Router
	modSvc *MockModerationService
	tokens security.TokenManager
	dbMock sqlmock.Sqlmock
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", string(hash), testActorID, time.Hour)

	modSvc := new(MockModerationService)
	router := mux.NewRouter()
	NewOpsAPI(tokens, modSvc, db, testActorID).RegisterRoutes(router)

	return &apiFixture{router: router, modSvc: modSvc, tokens: tokens, dbMock: dbMock}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) login(t *testing.T) string {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/login", "", map[string]string{"password": testPassword})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	f.dbMock.ExpectPing()

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthz_DatabaseDown(t *testing.T) {
	f := newAPIFixture(t)
	f.dbMock.ExpectPing().WillReturnError(assert.AnError)

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/login", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_RejectsMissingAndBogusTokens(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/applications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/applications", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListApplications(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	apps := []domain.Application{{ApplicantID: 42, DisplayName: "Alice", Status: domain.ApplicationStatusSubmitted}}
	f.modSvc.On("ListApplications", mock.Anything, domain.ApplicationStatusSubmitted).Return(apps, nil)

	rr := f.do(t, http.MethodGet, "/api/applications?status=submitted", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Applications []domain.Application `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Applications, 1)
	assert.Equal(t, int64(42), resp.Applications[0].ApplicantID)
	f.modSvc.AssertExpectations(t)
}

func TestListApplications_DefaultsToPending(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	f.modSvc.On("ListApplications", mock.Anything, domain.ApplicationStatusPending).Return([]domain.Application{}, nil)

	rr := f.do(t, http.MethodGet, "/api/applications", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	f.modSvc.AssertExpectations(t)
}

func TestApprove(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	f.modSvc.On("Decide", mock.Anything, testActorID, int64(42), domain.DecisionApprove).
		Return(domain.ApplicationStatusApproved, nil)

	rr := f.do(t, http.MethodPost, "/api/applications/42/approve", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ApplicationStatusApproved), resp["status"])
	f.modSvc.AssertExpectations(t)
}

func TestDecide_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   domain.ApplicationStatus
		wantCode int
	}{
		{"unauthorized actor", domain.ErrNotAuthorized, "", http.StatusForbidden},
		{"unknown applicant", domain.ErrNotFound, "", http.StatusNotFound},
		{"nothing to review", domain.ErrNoSubmission, domain.ApplicationStatusPending, http.StatusConflict},
		{"internal failure", assert.AnError, "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			token := f.login(t)

			f.modSvc.On("Decide", mock.Anything, testActorID, int64(42), domain.DecisionReject).
				Return(tt.status, tt.err)

			rr := f.do(t, http.MethodPost, "/api/applications/42/reject", token, nil)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestDecide_NonNumericIDIsNotRouted(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	rr := f.do(t, http.MethodPost, "/api/applications/abc/approve", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
