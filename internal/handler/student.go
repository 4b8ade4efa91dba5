package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hems/examhall/internal/exam"
	"github.com/hems/examhall/internal/handler/views"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/model"
)

func (h *Handler) handleStudentHome(w http.ResponseWriter, r *http.Request) {
	exams, err := h.exams.OpenExams(r.Context(), studentFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, exams)
		return
	}
	h.render(w, r, http.StatusOK, views.StudentHome(exams))
}

func (h *Handler) handleMyResults(w http.ResponseWriter, r *http.Request) {
	rows, err := h.exams.MyResults(r.Context(), studentFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, rows)
		return
	}
	h.render(w, r, http.StatusOK, views.MyResultsPage(rows))
}

func (h *Handler) handlePasswordEntry(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.exams.PasswordEntry(r.Context(), studentFrom(r.Context()), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, entry)
		return
	}
	h.render(w, r, http.StatusOK, views.PasswordEntryPage(entry, ""))
}

type redeemRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	student := studentFrom(ctx)
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req redeemRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		req.Password = r.FormValue("password")
	}

	attemptID, err := h.exams.Redeem(ctx, student, examID, req.Password, origin(r))
	if errors.Is(err, exam.ErrInvalidCredential) && !wantsJSON(r) {
		entry, eerr := h.exams.PasswordEntry(ctx, student, examID)
		if eerr != nil {
			h.fail(w, r, eerr)
			return
		}
		h.render(w, r, http.StatusUnauthorized,
			views.PasswordEntryPage(entry, appI18n.T(ctx, "InvalidExamPassword")))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, fmt.Sprintf("/student/attempts/%d", attemptID), http.StatusCreated,
		map[string]int64{"attempt_id": attemptID})
}

func (h *Handler) handleTakeExam(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.exams.Load(r.Context(), studentFrom(r.Context()), attemptID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	h.render(w, r, http.StatusOK, views.TakeExamPage(view))
}

type answerRequest struct {
	QuestionID       int64  `json:"question_id"`
	SelectedChoiceID *int64 `json:"selected_choice_id"`
	IsFlagged        bool   `json:"is_flagged"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.exams.RecordAnswer(r.Context(), studentFrom(r.Context()), exam.AnswerInput{
		AttemptID:        attemptID,
		QuestionID:       req.QuestionID,
		SelectedChoiceID: req.SelectedChoiceID,
		IsFlagged:        req.IsFlagged,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type heartbeatRequest struct {
	Detail string `json:"detail"`
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req heartbeatRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.exams.Heartbeat(r.Context(), studentFrom(r.Context()), attemptID, req.Detail, origin(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.exams.Submit(r.Context(), studentFrom(r.Context()), attemptID, origin(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, fmt.Sprintf("/student/attempts/%d/result", attemptID), http.StatusOK, res)
}

// handleResult serves both the student and the coordinator result view.
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	view, err := h.exams.Result(r.Context(), *user, attemptID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	h.render(w, r, http.StatusOK, views.ResultPage(view))
}
