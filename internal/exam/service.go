// Package exam implements the attempt lifecycle, grading and exam
// authoring on top of the store. Every operation takes the acting identity
// explicitly.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/store"
)

// Config holds the tunables of the exam service.
type Config struct {
	DeadlineGrace  time.Duration
	PasswordTTL    time.Duration
	PasswordLength int
	HashCost       int
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		DeadlineGrace:  2 * time.Minute,
		PasswordTTL:    24 * time.Hour,
		PasswordLength: 8,
		HashCost:       bcrypt.DefaultCost,
	}
}

// Advisor suggests study tips for missed questions.
type Advisor interface {
	StudyTips(ctx context.Context, examTitle string, missed []model.MissedQuestion) ([]string, error)
}

// Origin describes where a request came from for the activity log.
type Origin struct {
	IPAddress  string
	DeviceInfo string
}

// Service runs exam operations against a store.
type Service struct {
	store   *store.Store
	cfg     Config
	advisor Advisor
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAdvisor enables study tips on published results.
func WithAdvisor(a Advisor) Option {
	return func(s *Service) { s.advisor = a }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. Zero config fields take their defaults.
func NewService(st *store.Store, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.DeadlineGrace == 0 {
		cfg.DeadlineGrace = def.DeadlineGrace
	}
	if cfg.PasswordTTL == 0 {
		cfg.PasswordTTL = def.PasswordTTL
	}
	if cfg.PasswordLength == 0 {
		cfg.PasswordLength = def.PasswordLength
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = def.HashCost
	}
	s := &Service{store: st, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func notFoundAs(err error, what string, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}

func requireStaff(u model.User) error {
	if !u.Active || (u.Role != model.UserRoleCoordinator && u.Role != model.UserRoleAdmin) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logActivity(ctx context.Context, userID int64, kind model.ActivityKind, action string, o Origin) {
	err := s.store.AppendActivity(ctx, model.ActivityLog{
		UserID: userID, Kind: kind, Action: action, Timestamp: s.now(),
		IPAddress: o.IPAddress, DeviceInfo: o.DeviceInfo,
	})
	if err != nil {
		slog.Warn("failed to log activity", "user_id", userID, "action", action, "error", err)
	}
}

// EntryView is what a student sees before redeeming a password.
type EntryView struct {
	Exam        model.Exam
	HasPassword bool
}

// PasswordEntry prepares the password prompt of an exam. A submitted or
// open attempt is reported as an *AttemptStateError so the caller can
// redirect.
func (s *Service) PasswordEntry(ctx context.Context, student model.Student, examID int64) (*EntryView, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, notFoundAs(err, "exam", examID)
	}
	if err := s.existingAttempt(ctx, examID, student.ID); err != nil {
		return nil, err
	}
	_, err = s.store.RedeemablePassword(ctx, examID, student.ID, s.now())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &EntryView{Exam: *exam, HasPassword: err == nil}, nil
}

func (s *Service) existingAttempt(ctx context.Context, examID, studentID int64) error {
	if a, err := s.store.LatestSubmittedAttempt(ctx, examID, studentID); err == nil {
		return &AttemptStateError{AttemptID: a.ID, Err: ErrAlreadySubmitted}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if a, err := s.store.OpenAttempt(ctx, examID, studentID); err == nil {
		return &AttemptStateError{AttemptID: a.ID, Err: ErrAttemptInProgress}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// NormalizeSecret canonicalizes a typed exam password.
func NormalizeSecret(secret string) string {
	return strings.ToUpper(strings.TrimSpace(secret))
}

// Redeem exchanges an exam password for a new attempt. Every credential
// failure is reported as ErrInvalidCredential without saying which part was
// wrong.
func (s *Service) Redeem(ctx context.Context, student model.Student, examID int64, secret string, o Origin) (int64, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return 0, notFoundAs(err, "exam", examID)
	}
	if !exam.Status.Open() {
		return 0, ErrExamUnavailable
	}
	if err := s.existingAttempt(ctx, examID, student.ID); err != nil {
		return 0, err
	}

	now := s.now()
	p, err := s.store.RedeemablePassword(ctx, examID, student.ID, now)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrInvalidCredential
	}
	if err != nil {
		return 0, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.SecretHash), []byte(NormalizeSecret(secret))) != nil {
		return 0, ErrInvalidCredential
	}

	attemptID, err := s.store.RedeemPassword(ctx, p.ID, examID, student.ID, now)
	switch {
	case errors.Is(err, store.ErrConflict):
		return 0, ErrInvalidCredential
	case errors.Is(err, store.ErrOpenAttempt):
		if serr := s.existingAttempt(ctx, examID, student.ID); serr != nil {
			return 0, serr
		}
		return 0, ErrInvalidCredential
	case err != nil:
		return 0, err
	}
	s.logActivity(ctx, student.UserID, model.ActivityExam, "Started Exam: "+exam.Title, o)
	return attemptID, nil
}

// ownAttempt loads an attempt that belongs to the student. Attempts of
// other students are reported as not found.
func (s *Service) ownAttempt(ctx context.Context, student model.Student, attemptID int64) (*model.Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, notFoundAs(err, "attempt", attemptID)
	}
	if a.StudentID != student.ID {
		return nil, fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
	}
	return a, nil
}

// AttemptView is the state needed to render or resume an attempt.
// Choice correctness is never set.
type AttemptView struct {
	Attempt   model.Attempt
	Exam      model.Exam
	Questions []model.Question
	Answers   map[int64]model.Answer
	Deadline  time.Time
	Remaining time.Duration
}

// Load replays an attempt for the exam page.
func (s *Service) Load(ctx context.Context, student model.Student, attemptID int64) (*AttemptView, error) {
	a, err := s.ownAttempt(ctx, student, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status == model.AttemptSubmitted {
		return nil, &AttemptStateError{AttemptID: a.ID, Err: ErrAlreadySubmitted}
	}
	exam, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, notFoundAs(err, "exam", a.ExamID)
	}
	questions, err := s.store.ListQuestions(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		for j := range questions[i].Choices {
			questions[i].Choices[j].IsCorrect = false
		}
	}
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[int64]model.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	deadline := a.StartTime.Add(exam.Duration())
	remaining := deadline.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return &AttemptView{
		Attempt:   *a,
		Exam:      *exam,
		Questions: questions,
		Answers:   byQuestion,
		Deadline:  deadline,
		Remaining: remaining,
	}, nil
}

// AnswerInput is one autosave of a question.
type AnswerInput struct {
	AttemptID        int64
	QuestionID       int64
	SelectedChoiceID *int64
	IsFlagged        bool
}

// RecordAnswer saves an answer, replacing an earlier one to the same
// question. Writes to submitted or blocked attempts and writes after the
// deadline plus grace are rejected.
func (s *Service) RecordAnswer(ctx context.Context, student model.Student, in AnswerInput) error {
	a, err := s.ownAttempt(ctx, student, in.AttemptID)
	if err != nil {
		return err
	}
	if err := writable(a); err != nil {
		return err
	}
	exam, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return notFoundAs(err, "exam", a.ExamID)
	}
	now := s.now()
	if now.After(a.StartTime.Add(exam.Duration() + s.cfg.DeadlineGrace)) {
		return ErrDeadlinePassed
	}

	examID, err := s.store.QuestionExam(ctx, in.QuestionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err != nil || examID != a.ExamID {
		return invalid("question_id", "question does not belong to this exam")
	}
	if in.SelectedChoiceID != nil {
		qid, err := s.store.ChoiceQuestion(ctx, *in.SelectedChoiceID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err != nil || qid != in.QuestionID {
			return invalid("selected_choice_id", "choice does not belong to this question")
		}
	}

	err = s.store.UpsertAnswer(ctx, model.Answer{
		AttemptID:        a.ID,
		QuestionID:       in.QuestionID,
		SelectedChoiceID: in.SelectedChoiceID,
		IsFlagged:        in.IsFlagged,
		UpdatedAt:        now,
	})
	if errors.Is(err, store.ErrConflict) {
		// The attempt changed state after it was read.
		a, rerr := s.store.GetAttempt(ctx, in.AttemptID)
		if rerr != nil {
			return rerr
		}
		if werr := writable(a); werr != nil {
			return werr
		}
	}
	return err
}

func writable(a *model.Attempt) error {
	switch a.Status {
	case model.AttemptSubmitted:
		return &AttemptStateError{AttemptID: a.ID, Err: ErrAlreadySubmitted}
	case model.AttemptBlocked:
		return ErrAttemptBlocked
	}
	return nil
}

// Heartbeat records that the exam page of an attempt is alive.
func (s *Service) Heartbeat(ctx context.Context, student model.Student, attemptID int64, detail string, o Origin) error {
	a, err := s.ownAttempt(ctx, student, attemptID)
	if err != nil {
		return err
	}
	if a.Status == model.AttemptSubmitted {
		return &AttemptStateError{AttemptID: a.ID, Err: ErrAlreadySubmitted}
	}
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "Active"
	}
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return s.store.AppendActivity(ctx, model.ActivityLog{
		UserID: student.UserID, Kind: model.ActivityHeartbeat,
		Action: model.HeartbeatPrefix + detail, Timestamp: s.now(),
		IPAddress: o.IPAddress, DeviceInfo: o.DeviceInfo,
	})
}

// Submit closes an attempt and grades it. Submitting an already submitted
// attempt returns its stored result, grading it first if needed. If grading
// fails the attempt stays submitted and a *GradingError is returned.
func (s *Service) Submit(ctx context.Context, student model.Student, attemptID int64, o Origin) (*model.Result, error) {
	a, err := s.ownAttempt(ctx, student, attemptID)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case model.AttemptBlocked:
		return nil, ErrAttemptBlocked
	case model.AttemptSubmitted:
		return s.storedOrGrade(ctx, a.ID)
	}

	end := s.now()
	err = s.store.TransitionAttempt(ctx, a.ID, model.AttemptInProgress, model.AttemptSubmitted, &end)
	if errors.Is(err, store.ErrConflict) {
		a, rerr := s.store.GetAttempt(ctx, attemptID)
		if rerr != nil {
			return nil, rerr
		}
		if a.Status == model.AttemptSubmitted {
			return s.storedOrGrade(ctx, a.ID)
		}
		return nil, ErrAttemptBlocked
	}
	if err != nil {
		return nil, err
	}

	if exam, err := s.store.GetExam(ctx, a.ExamID); err == nil {
		s.logActivity(ctx, student.UserID, model.ActivityExam, "Submitted Exam: "+exam.Title, o)
	}
	return s.Grade(ctx, a.ID)
}

func (s *Service) storedOrGrade(ctx context.Context, attemptID int64) (*model.Result, error) {
	r, err := s.store.GetResultByAttempt(ctx, attemptID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.Grade(ctx, attemptID)
}

// Grade computes and stores the result of a submitted attempt, replacing
// any earlier result. Weights are derived from the current question points.
func (s *Service) Grade(ctx context.Context, attemptID int64) (*model.Result, error) {
	fail := func(err error) (*model.Result, error) {
		slog.Error("grading failed", "attempt_id", attemptID, "error", err)
		return nil, &GradingError{AttemptID: attemptID, Err: err}
	}

	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, notFoundAs(err, "attempt", attemptID)
	}
	if a.Status != model.AttemptSubmitted {
		return nil, fmt.Errorf("grade %s attempt: %w", a.Status, ErrInvalidTransition)
	}
	exam, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return fail(fmt.Errorf("load exam: %w", err))
	}
	points, err := s.store.QuestionPoints(ctx, a.ExamID)
	if err != nil {
		return fail(fmt.Errorf("load question points: %w", err))
	}
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return fail(fmt.Errorf("load answers: %w", err))
	}
	correct, err := s.store.CorrectChoices(ctx, a.ExamID)
	if err != nil {
		return fail(fmt.Errorf("load correct choices: %w", err))
	}

	out := Compile(exam.TotalMarks, points, answers, correct)
	r := model.Result{
		AttemptID:   a.ID,
		TotalScore:  out.TotalScore,
		Earned:      out.Earned,
		Percentage:  out.Percentage,
		Grade:       out.Grade,
		PassStatus:  out.PassStatus,
		PublishedAt: s.now().UTC().Truncate(time.Second),
	}
	r.ID, err = s.store.UpsertResult(ctx, r)
	if err != nil {
		return fail(err)
	}
	return &r, nil
}

// RegradeAttempt re-runs grading of one submitted attempt.
func (s *Service) RegradeAttempt(ctx context.Context, actor model.User, attemptID int64) (*model.Result, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.Grade(ctx, attemptID)
}

// RegradeExam re-runs grading of every submitted attempt of an exam and
// reports how many were graded.
func (s *Service) RegradeExam(ctx context.Context, actor model.User, examID int64) (int, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return 0, notFoundAs(err, "exam", examID)
	}
	attempts, err := s.store.ListAttemptsByExam(ctx, examID)
	if err != nil {
		return 0, err
	}
	var submitted []model.Attempt
	for _, a := range attempts {
		if a.Status == model.AttemptSubmitted {
			submitted = append(submitted, a)
		}
	}
	n, err := s.gradeAll(ctx, submitted)
	s.logActivity(ctx, actor.ID, model.ActivityExam, fmt.Sprintf("Regraded exam %d (%d attempts)", examID, n), Origin{})
	return n, err
}

// GradePending grades every submitted attempt without a result.
func (s *Service) GradePending(ctx context.Context) (int, error) {
	attempts, err := s.store.ListUngradedAttempts(ctx)
	if err != nil {
		return 0, err
	}
	return s.gradeAll(ctx, attempts)
}

func (s *Service) gradeAll(ctx context.Context, attempts []model.Attempt) (int, error) {
	var errs []error
	graded := 0
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.Grade(ctx, a.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		graded++
	}
	return graded, errors.Join(errs...)
}

// SetBlocked blocks or unblocks an attempt.
func (s *Service) SetBlocked(ctx context.Context, actor model.User, attemptID int64, blocked bool) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return notFoundAs(err, "attempt", attemptID)
	}
	to := model.AttemptInProgress
	verb := "Unblocked"
	if blocked {
		to = model.AttemptBlocked
		verb = "Blocked"
	}
	if _, err := a.Status.Transition(to); err != nil {
		return err
	}
	err = s.store.TransitionAttempt(ctx, a.ID, a.Status, to, nil)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("attempt %d changed concurrently: %w", a.ID, ErrInvalidTransition)
	}
	if err != nil {
		return err
	}
	s.logActivity(ctx, actor.ID, model.ActivityExam, fmt.Sprintf("%s attempt %d", verb, a.ID), Origin{})
	return nil
}

// Block suspends an in-progress attempt.
func (s *Service) Block(ctx context.Context, actor model.User, attemptID int64) error {
	return s.SetBlocked(ctx, actor, attemptID, true)
}

// Unblock resumes a blocked attempt.
func (s *Service) Unblock(ctx context.Context, actor model.User, attemptID int64) error {
	return s.SetBlocked(ctx, actor, attemptID, false)
}

// ReviewItem is one question of a published result.
type ReviewItem struct {
	Question       model.Question
	SelectedChoice *int64
	CorrectChoice  int64
	Weighted       float64
	Correct        bool
	Flagged        bool
}

// ResultView is a graded attempt with remediation data.
type ResultView struct {
	Exam      model.Exam
	Attempt   model.Attempt
	Result    model.Result
	Questions int
	Correct   int
	Skipped   int
	Flagged   int
	Review    []ReviewItem
	StudyTips []string
}

// Result shows the graded outcome of an attempt. Students only see their
// own attempts; the answer review is included once results are published.
func (s *Service) Result(ctx context.Context, viewer model.User, attemptID int64) (*ResultView, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, notFoundAs(err, "attempt", attemptID)
	}
	if requireStaff(viewer) != nil {
		st, err := s.store.GetStudentByUserID(ctx, viewer.ID)
		if err != nil || st.ID != a.StudentID {
			return nil, fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
		}
	}
	if a.Status != model.AttemptSubmitted {
		return nil, &AttemptStateError{AttemptID: a.ID, Err: ErrAttemptInProgress}
	}
	r, err := s.store.GetResultByAttempt(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &GradingError{AttemptID: a.ID, Err: errors.New("no result stored")}
	}
	if err != nil {
		return nil, err
	}
	exam, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, notFoundAs(err, "exam", a.ExamID)
	}
	questions, err := s.store.ListQuestions(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	correct := make(map[int64]int64)
	for _, q := range questions {
		for _, c := range q.Choices {
			if c.IsCorrect {
				correct[q.ID] = c.ID
			}
		}
	}
	out := Compile(exam.TotalMarks, marks.PointsOf(questions), answers, correct)
	view := &ResultView{
		Exam:      *exam,
		Attempt:   *a,
		Result:    *r,
		Questions: out.Questions,
		Correct:   out.Correct,
		Skipped:   out.Skipped,
		Flagged:   out.Flagged,
	}
	if !exam.ResultsPublished {
		return view, nil
	}

	weights := marks.Weights(exam.TotalMarks, marks.PointsOf(questions))
	byQuestion := make(map[int64]model.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}
	var missed []model.MissedQuestion
	for _, q := range questions {
		ans := byQuestion[q.ID]
		item := ReviewItem{
			Question:       q,
			SelectedChoice: ans.SelectedChoiceID,
			CorrectChoice:  correct[q.ID],
			Weighted:       weights[q.ID],
			Flagged:        ans.IsFlagged,
		}
		item.Correct = ans.SelectedChoiceID != nil && *ans.SelectedChoiceID == item.CorrectChoice
		view.Review = append(view.Review, item)
		if !item.Correct {
			missed = append(missed, missedQuestion(q, ans.SelectedChoiceID))
		}
	}

	if s.advisor != nil && len(missed) > 0 {
		tips, err := s.advisor.StudyTips(ctx, exam.Title, missed)
		if err != nil {
			slog.Warn("study tips unavailable", "attempt_id", a.ID, "error", err)
		} else {
			view.StudyTips = tips
		}
	}
	return view, nil
}

func missedQuestion(q model.Question, selected *int64) model.MissedQuestion {
	m := model.MissedQuestion{Question: q.Text}
	for _, c := range q.Choices {
		if c.IsCorrect {
			m.Correct = c.Text
		}
		if selected != nil && c.ID == *selected {
			m.Chosen = c.Text
		}
	}
	return m
}

// ResultSummary is one line of a result list. Result is nil while the
// attempt is ungraded.
type ResultSummary struct {
	Attempt     model.Attempt
	Exam        model.Exam
	StudentName string
	Result      *model.Result
}

// MyResults lists the submitted attempts of a student, newest first.
func (s *Service) MyResults(ctx context.Context, student model.Student) ([]ResultSummary, error) {
	attempts, err := s.store.ListAttemptsByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	exams := make(map[int64]*model.Exam)
	var out []ResultSummary
	for _, a := range attempts {
		if a.Status != model.AttemptSubmitted {
			continue
		}
		exam, ok := exams[a.ExamID]
		if !ok {
			if exam, err = s.store.GetExam(ctx, a.ExamID); err != nil {
				return nil, err
			}
			exams[a.ExamID] = exam
		}
		row := ResultSummary{Attempt: a, Exam: *exam, StudentName: student.FullName}
		r, err := s.store.GetResultByAttempt(ctx, a.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		row.Result = r
		out = append(out, row)
	}
	return out, nil
}

// ExamResults lists every attempt of an exam with its result. Submitted
// attempts without a result have a nil Result so grading can be retried.
func (s *Service) ExamResults(ctx context.Context, actor model.User, examID int64) (*model.Exam, []ResultSummary, error) {
	if err := requireStaff(actor); err != nil {
		return nil, nil, err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, nil, notFoundAs(err, "exam", examID)
	}
	attempts, err := s.store.ListAttemptsByExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.store.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make(map[int64]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName
	}

	out := make([]ResultSummary, 0, len(attempts))
	for _, a := range attempts {
		row := ResultSummary{Attempt: a, Exam: *exam, StudentName: names[a.StudentID]}
		if r, ok := results[a.ID]; ok {
			row.Result = &r
		}
		out = append(out, row)
	}
	return exam, out, nil
}

// Export returns the exam's results in export form.
func (s *Service) Export(ctx context.Context, actor model.User, examID int64) (*model.ExamExport, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	exp, err := s.store.ExportExamResults(ctx, examID)
	if err != nil {
		return nil, notFoundAs(err, "exam", examID)
	}
	return exp, nil
}
