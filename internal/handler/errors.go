package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hems/examhall/internal/exam"
	"github.com/hems/examhall/internal/handler/views"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/store"
)

type errorBody struct {
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// statusOf maps a service error to an HTTP status and a message ID.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound"
	case errors.Is(err, exam.ErrInvalidCredential):
		return http.StatusUnauthorized, "InvalidExamPassword"
	case errors.Is(err, exam.ErrAttemptBlocked):
		return http.StatusLocked, "ErrBlocked"
	case errors.Is(err, exam.ErrDeadlinePassed):
		return http.StatusConflict, "ErrDeadlinePassed"
	case errors.Is(err, exam.ErrInvalidTransition), errors.Is(err, store.ErrConflict),
		errors.Is(err, exam.ErrAlreadySubmitted), errors.Is(err, exam.ErrAttemptInProgress):
		return http.StatusConflict, "ErrInvalidTransition"
	case errors.Is(err, exam.ErrExamUnavailable):
		return http.StatusConflict, "ErrExamUnavailable"
	case errors.Is(err, exam.ErrQuestionInUse):
		return http.StatusConflict, "ErrQuestionInUse"
	case errors.Is(err, exam.ErrPasswordUsed):
		return http.StatusConflict, "ErrPasswordUsed"
	case errors.Is(err, exam.ErrValidation):
		return http.StatusUnprocessableEntity, "ErrValidation"
	case errors.Is(err, exam.ErrGradingFailure):
		return http.StatusServiceUnavailable, "ErrGradingPending"
	case errors.Is(err, exam.ErrForbidden):
		return http.StatusForbidden, "ErrForbidden"
	}
	return http.StatusInternalServerError, "ErrInternal"
}

// attemptRedirect returns where a student should go when an operation hit
// an attempt in the given state.
func attemptRedirect(se *exam.AttemptStateError) string {
	if errors.Is(se.Err, exam.ErrAlreadySubmitted) {
		return fmt.Sprintf("/student/attempts/%d/result", se.AttemptID)
	}
	return fmt.Sprintf("/student/attempts/%d", se.AttemptID)
}

// fail writes the response for a failed operation.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var se *exam.AttemptStateError
	if errors.As(err, &se) {
		if u := model.UserFromContext(ctx); u != nil && u.Role == model.UserRoleStudent {
			target := attemptRedirect(se)
			if wantsJSON(r) {
				writeJSON(w, http.StatusConflict, errorBody{Error: se.Error(), Redirect: target})
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
	}

	status, msgID := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	var fields map[string]string
	var ve *exam.ValidationError
	if errors.As(err, &ve) {
		fields = ve.Fields
	}
	msg := appI18n.T(ctx, msgID)
	if wantsJSON(r) {
		writeJSON(w, status, errorBody{Error: msg, Fields: fields})
		return
	}
	h.render(w, r, status, views.ErrorPage(status, msg, fields))
}
