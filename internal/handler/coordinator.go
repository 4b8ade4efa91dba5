package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hems/examhall/internal/exam"
	"github.com/hems/examhall/internal/handler/views"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
)

func actor(r *http.Request) model.User {
	return *model.UserFromContext(r.Context())
}

func examPath(id int64) string {
	return fmt.Sprintf("/coordinator/exams/%d", id)
}

func (h *Handler) handleExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.exams.ListExams(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, exams)
		return
	}
	h.render(w, r, http.StatusOK, views.ExamsPage(exams, "", nil))
}

// examInput reads exam fields from a JSON body or a form.
func examInput(w http.ResponseWriter, r *http.Request) (exam.ExamInput, error) {
	var in exam.ExamInput
	if isJSONBody(r) {
		return in, decodeJSON(w, r, &in)
	}
	in.Title = strings.TrimSpace(r.FormValue("title"))
	in.Description = strings.TrimSpace(r.FormValue("description"))
	in.DurationMinutes = formInt(r, "duration_minutes")
	in.TotalMarks = formInt(r, "total_marks")
	return in, nil
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	in, err := examInput(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.exams.CreateExam(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(id), http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := examInput(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.exams.UpdateExam(r.Context(), actor(r), examID, in); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(examID), http.StatusOK, nil)
}

// handleImportExam loads an uploaded exam definition. A file whose content
// hash matches the last import under the same name is skipped.
func (h *Handler) handleImportExam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		h.fail(w, r, &exam.ValidationError{Fields: map[string]string{"exam_file": "file too large"}})
		return
	}
	file, header, err := r.FormFile("exam_file")
	if err != nil {
		h.fail(w, r, &exam.ValidationError{Fields: map[string]string{"exam_file": "no file uploaded"}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	stored, err := h.store.ImportedFileHash(ctx, header.Filename)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	exams, err := h.exams.ListExams(ctx, actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stored == hash {
		h.render(w, r, http.StatusOK, views.ExamsPage(exams, appI18n.T(ctx, "ImportDuplicate"), nil))
		return
	}

	var def model.ExamImport
	if err := json.Unmarshal(data, &def); err != nil {
		h.fail(w, r, &exam.ValidationError{Fields: map[string]string{"exam_file": "invalid JSON: " + err.Error()}})
		return
	}
	id, err := h.exams.ImportExam(ctx, actor(r), def)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.SetImportedFileHash(ctx, header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}
	slog.Info("imported exam via upload", "filename", header.Filename, "exam_id", id, "questions", len(def.Questions))
	done(w, r, examPath(id), http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleExamDetail(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.exams.GetExam(r.Context(), actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, d)
		return
	}
	h.render(w, r, http.StatusOK, views.ExamDetailPage(d, nil))
}

type weightsResponse struct {
	Validation marks.Validation `json:"validation"`
	Summary    marks.Summary    `json:"summary"`
}

func (h *Handler) handleWeights(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.exams.GetExam(r.Context(), actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weightsResponse{Validation: d.Validation, Summary: d.Summary})
}

// questionInput reads a new question from a JSON body or from the form,
// where choices are repeated "choice" fields and "correct" is the index of
// the correct one. Blank choices are skipped.
func questionInput(w http.ResponseWriter, r *http.Request) (exam.QuestionInput, error) {
	var in exam.QuestionInput
	if isJSONBody(r) {
		return in, decodeJSON(w, r, &in)
	}
	if err := r.ParseForm(); err != nil {
		return in, err
	}
	in.Text = strings.TrimSpace(r.PostForm.Get("text"))
	in.Marks = formInt(r, "marks")
	correct, err := strconv.Atoi(r.PostForm.Get("correct"))
	if err != nil {
		correct = -1
	}
	for i, text := range r.PostForm["choice"] {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		in.Choices = append(in.Choices, exam.ChoiceInput{Text: text, Correct: i == correct})
	}
	return in, nil
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := questionInput(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.exams.AddQuestion(r.Context(), actor(r), examID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(examID), http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	questionID, err := idParam(r, "questionID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in exam.QuestionEdit
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		in.Text = strings.TrimSpace(r.FormValue("text"))
		in.Marks = formInt(r, "marks")
	}
	examID, err := h.store.QuestionExam(ctx, questionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.exams.UpdateQuestion(ctx, actor(r), questionID, in); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(examID), http.StatusOK, nil)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	questionID, err := idParam(r, "questionID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	examID, err := h.store.QuestionExam(ctx, questionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.exams.DeleteQuestion(ctx, actor(r), questionID); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(examID), http.StatusOK, nil)
}

func (h *Handler) handleExamStatus(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, u := r.Context(), actor(r)
	switch chi.URLParam(r, "action") {
	case "publish":
		err = h.exams.Publish(ctx, u, examID)
	case "activate":
		err = h.exams.Activate(ctx, u, examID)
	case "pause":
		err = h.exams.Pause(ctx, u, examID)
	case "close":
		err = h.exams.Close(ctx, u, examID)
	default:
		err = fmt.Errorf("exam action %q: %w", chi.URLParam(r, "action"), exam.ErrNotFound)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(examID), http.StatusOK, nil)
}

type publishRequest struct {
	Published bool `json:"published"`
}

func (h *Handler) handlePublishResults(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req publishRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		req.Published = r.FormValue("published") == "true"
	}
	if err := h.exams.PublishResults(r.Context(), actor(r), examID, req.Published); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, examPath(examID), http.StatusOK, nil)
}

func (h *Handler) renderPasswords(w http.ResponseWriter, r *http.Request, examID int64, issued []exam.IssuedPassword) {
	ctx := r.Context()
	d, err := h.exams.GetExam(ctx, actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.exams.ListPasswords(ctx, actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	students, err := h.store.ListStudents(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.PasswordsPage(d.Exam, list, unassigned(students, list), issued))
}

func (h *Handler) handlePasswords(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		list, err := h.exams.ListPasswords(r.Context(), actor(r), examID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	h.renderPasswords(w, r, examID, nil)
}

// handleGeneratePasswords shows the plaintext secrets in its response
// instead of redirecting, since they are not stored.
func (h *Handler) handleGeneratePasswords(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	length := 0
	if !isJSONBody(r) {
		length = formInt(r, "length")
	}
	issued, err := h.exams.GeneratePasswords(r.Context(), actor(r), examID, length)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, issued)
		return
	}
	h.renderPasswords(w, r, examID, issued)
}

// unassigned returns the students without a password in list.
func unassigned(students []model.Student, list []model.PasswordAssignment) []model.Student {
	held := make(map[int64]bool, len(list))
	for _, p := range list {
		held[p.StudentID] = true
	}
	var out []model.Student
	for _, st := range students {
		if !held[st.ID] {
			out = append(out, st)
		}
	}
	return out
}

type assignRequest struct {
	StudentID int64 `json:"student_id"`
	Length    int   `json:"length"`
}

func (h *Handler) assignRequest(w http.ResponseWriter, r *http.Request) (int64, assignRequest, error) {
	var req assignRequest
	examID, err := idParam(r, "examID")
	if err != nil {
		return 0, req, err
	}
	if isJSONBody(r) {
		err = decodeJSON(w, r, &req)
	} else {
		req.StudentID = int64(formInt(r, "student_id"))
		req.Length = formInt(r, "length")
	}
	return examID, req, err
}

func (h *Handler) handleAssignStudent(w http.ResponseWriter, r *http.Request) {
	examID, req, err := h.assignRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	issued, err := h.exams.AssignStudent(r.Context(), actor(r), examID, req.StudentID, req.Length)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, issued)
		return
	}
	h.renderPasswords(w, r, examID, []exam.IssuedPassword{*issued})
}

func (h *Handler) handleUnassignStudent(w http.ResponseWriter, r *http.Request) {
	examID, req, err := h.assignRequest(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.exams.Unassign(r.Context(), actor(r), examID, req.StudentID); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, fmt.Sprintf("/coordinator/exams/%d/passwords", examID), http.StatusOK, nil)
}

func (h *Handler) handleRegeneratePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	passwordID, err := idParam(r, "passwordID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	issued, err := h.exams.RegeneratePassword(ctx, actor(r), passwordID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, issued)
		return
	}
	p, err := h.store.GetPassword(ctx, passwordID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderPasswords(w, r, p.ExamID, []exam.IssuedPassword{*issued})
}

func (h *Handler) handleMonitorPage(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.exams.GetExam(r.Context(), actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.MonitorPage(d.Exam))
}

func (h *Handler) handleMonitorStats(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	snap, err := h.monitor.Snapshot(r.Context(), examID)
	if err != nil {
		status, msgID := statusOf(err)
		if status == http.StatusInternalServerError {
			slog.Error("monitor snapshot failed", "exam_id", examID, "error", err)
		}
		writeJSON(w, status, errorBody{Error: appI18n.T(r.Context(), msgID)})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// resultsLocation returns the results page of the exam an attempt belongs to.
func (h *Handler) resultsLocation(r *http.Request, attemptID int64) string {
	a, err := h.store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		return "/coordinator/exams"
	}
	return examPath(a.ExamID) + "/results"
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *Handler) handleUnblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.exams.SetBlocked(r.Context(), actor(r), attemptID, blocked); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, h.resultsLocation(r, attemptID), http.StatusOK, nil)
}

func (h *Handler) handleGradeAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idParam(r, "attemptID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.exams.RegradeAttempt(r.Context(), actor(r), attemptID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, h.resultsLocation(r, attemptID), http.StatusOK, res)
}

func (h *Handler) renderResults(w http.ResponseWriter, r *http.Request, examID int64, msg string) {
	e, rows, err := h.exams.ExamResults(r.Context(), actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, rows)
		return
	}
	h.render(w, r, http.StatusOK, views.ResultsPage(*e, rows, msg))
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderResults(w, r, examID, "")
}

func (h *Handler) handleRegradeExam(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.exams.RegradeExam(r.Context(), actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]int{"graded": n})
		return
	}
	h.renderResults(w, r, examID, appI18n.Tp(r.Context(), "GradedCount", n))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	examID, err := idParam(r, "examID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	exp, err := h.exams.Export(r.Context(), actor(r), examID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.json"`, examID))
	writeJSON(w, http.StatusOK, exp)
}
