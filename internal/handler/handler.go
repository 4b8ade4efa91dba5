// Package handler serves the student, coordinator and admin HTTP surfaces.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/hems/examhall/internal/auth"
	"github.com/hems/examhall/internal/exam"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/monitor"
	"github.com/hems/examhall/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	exams   *exam.Service
	monitor *monitor.Aggregator
	tokens  *auth.Issuer
	config  model.AppConfig
}

// New creates a new Handler. tokens may be nil, which disables bearer
// authentication.
func New(s *store.Store, svc *exam.Service, mon *monitor.Aggregator, tokens *auth.Issuer, cfg model.AppConfig) *Handler {
	return &Handler{store: s, exams: svc, monitor: mon, tokens: tokens, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/", h.handleIndex)
			r.Post("/logout", h.handleLogout)

			r.Route("/student", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleStudent))
				r.Use(h.loadStudent)
				r.Get("/", h.handleStudentHome)
				r.Get("/results", h.handleMyResults)
				r.Get("/exams/{examID}", h.handlePasswordEntry)
				r.Post("/exams/{examID}/start", h.handleRedeem)
				r.Get("/attempts/{attemptID}", h.handleTakeExam)
				r.Post("/attempts/{attemptID}/answers", h.handleAnswer)
				r.Post("/attempts/{attemptID}/heartbeat", h.handleHeartbeat)
				r.Post("/attempts/{attemptID}/submit", h.handleSubmit)
				r.Get("/attempts/{attemptID}/result", h.handleResult)
			})

			r.Route("/coordinator", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleCoordinator, model.UserRoleAdmin))
				r.Get("/", h.handleExams)
				r.Get("/exams", h.handleExams)
				r.Post("/exams", h.handleCreateExam)
				r.Post("/exams/import", h.handleImportExam)
				r.Get("/exams/{examID}", h.handleExamDetail)
				r.Post("/exams/{examID}", h.handleUpdateExam)
				r.Get("/exams/{examID}/weights", h.handleWeights)
				r.Post("/exams/{examID}/questions", h.handleAddQuestion)
				r.Post("/exams/{examID}/status/{action}", h.handleExamStatus)
				r.Post("/exams/{examID}/results-published", h.handlePublishResults)
				r.Get("/exams/{examID}/passwords", h.handlePasswords)
				r.Post("/exams/{examID}/passwords", h.handleGeneratePasswords)
				r.Post("/exams/{examID}/passwords/assign", h.handleAssignStudent)
				r.Post("/exams/{examID}/passwords/unassign", h.handleUnassignStudent)
				r.Get("/exams/{examID}/monitor", h.handleMonitorPage)
				r.Get("/exams/{examID}/monitor-stats", h.handleMonitorStats)
				r.Get("/exams/{examID}/results", h.handleExamResults)
				r.Post("/exams/{examID}/regrade", h.handleRegradeExam)
				r.Get("/exams/{examID}/export", h.handleExport)
				r.Post("/questions/{questionID}", h.handleUpdateQuestion)
				r.Post("/questions/{questionID}/delete", h.handleDeleteQuestion)
				r.Post("/passwords/{passwordID}/regenerate", h.handleRegeneratePassword)
				r.Post("/attempts/{attemptID}/block", h.handleBlock)
				r.Post("/attempts/{attemptID}/unblock", h.handleUnblock)
				r.Post("/attempts/{attemptID}/grade", h.handleGradeAttempt)
				r.Get("/attempts/{attemptID}/result", h.handleResult)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/users", h.handleAdminUsersPage)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
				r.Post("/grade-pending", h.handleGradePending)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if user.Role == model.UserRoleStudent {
		http.Redirect(w, r, "/student/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/coordinator/exams", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// wantsJSON reports whether the client is an API client or a script
// rather than a browser navigation.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		isJSONBody(r) || bearerToken(r) != ""
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// decodeJSON reads a JSON request body into v. Syntax errors are reported
// as validation failures on the body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &exam.ValidationError{Fields: map[string]string{"body": err.Error()}}
	}
	return nil
}

// done finishes a mutating request: JSON clients get status and body,
// browsers are redirected to location.
func done(w http.ResponseWriter, r *http.Request, location string, status int, body any) {
	if wantsJSON(r) {
		if body == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, status, body)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// idParam parses a numeric URL parameter. Malformed IDs are reported as
// not found.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, chi.URLParam(r, name), exam.ErrNotFound)
	}
	return id, nil
}

func formInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(r.FormValue(name)))
	return v
}

func origin(r *http.Request) exam.Origin {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ua := r.UserAgent()
	if len(ua) > 255 {
		ua = ua[:255]
	}
	return exam.Origin{IPAddress: ip, DeviceInfo: ua}
}

func (h *Handler) logActivity(ctx context.Context, userID int64, kind model.ActivityKind, action string, r *http.Request) {
	o := origin(r)
	err := h.store.AppendActivity(ctx, model.ActivityLog{
		UserID: userID, Kind: kind, Action: action,
		IPAddress: o.IPAddress, DeviceInfo: o.DeviceInfo,
	})
	if err != nil {
		slog.Warn("failed to log activity", "user_id", userID, "action", action, "error", err)
	}
}
