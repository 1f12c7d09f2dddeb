// Package httpapi exposes the small ops REST surface: moderator login,
// application listing and an alternate decision path that feeds the same
// gateway as the Telegram buttons.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"voicegate-backend/internal/domain"
	"voicegate-backend/internal/logger"
	"voicegate-backend/internal/security"
	"voicegate-backend/internal/service"
)

type OpsAPI struct {
	tokens  security.TokenManager
	modSvc  service.ModerationService
	db      *sql.DB
	actorID int64
}

func NewOpsAPI(tokens security.TokenManager, modSvc service.ModerationService, db *sql.DB, actorID int64) *OpsAPI {
	return &OpsAPI{tokens: tokens, modSvc: modSvc, db: db, actorID: actorID}
}

// RegisterRoutes wires the ops endpoints onto the router.
func (a *OpsAPI) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/login", a.handleLogin).Methods(http.MethodPost)

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(a.authMiddleware)
	authed.HandleFunc("/applications", a.handleList).Methods(http.MethodGet)
	authed.HandleFunc("/applications/{id:[0-9]+}/approve", a.decideHandler(domain.DecisionApprove)).Methods(http.MethodPost)
	authed.HandleFunc("/applications/{id:[0-9]+}/reject", a.decideHandler(domain.DecisionReject)).Methods(http.MethodPost)
}

func (a *OpsAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.db.PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *OpsAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := a.tokens.Authenticate(req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *OpsAPI) handleList(w http.ResponseWriter, r *http.Request) {
	status := domain.ApplicationStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = domain.ApplicationStatusPending
	}

	apps, err := a.modSvc.ListApplications(r.Context(), status)
	if err != nil {
		logger.Error("Failed to list applications", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list applications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (a *OpsAPI) decideHandler(decision domain.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicantID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid applicant id")
			return
		}

		status, err := a.modSvc.Decide(r.Context(), a.actorID, applicantID, decision)
		switch {
		case errors.Is(err, domain.ErrNotAuthorized):
			writeError(w, http.StatusForbidden, "not an authorized moderator")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no application for this applicant")
		case errors.Is(err, domain.ErrNoSubmission):
			writeJSON(w, http.StatusConflict, map[string]any{
				"status": status,
				"error":  "application has no submission awaiting review",
			})
		case err != nil:
			logger.Error("Decision failed", "applicant_id", applicantID, "decision", decision, "error", err)
			writeError(w, http.StatusInternalServerError, "decision failed")
		default:
			writeJSON(w, http.StatusOK, map[string]any{"status": status})
		}
	}
}

func (a *OpsAPI) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := a.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
