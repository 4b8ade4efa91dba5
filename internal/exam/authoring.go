package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/store"
)

var validate = validator.New()

// ExamInput is the editable part of an exam.
type ExamInput struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=4000"`
	DurationMinutes int    `json:"duration_minutes" validate:"gt=0,lte=1440"`
	TotalMarks      int    `json:"total_marks" validate:"gt=0"`
}

// ChoiceInput is one answer option of a new question.
type ChoiceInput struct {
	Text    string `json:"text" validate:"required,max=1000"`
	Correct bool   `json:"correct"`
}

// QuestionInput is a new multiple-choice question.
type QuestionInput struct {
	Text    string        `json:"text" validate:"required,max=4000"`
	Marks   int           `json:"marks" validate:"gte=0"`
	Choices []ChoiceInput `json:"choices" validate:"min=2,dive"`
}

// QuestionEdit changes the text and raw points of a question.
type QuestionEdit struct {
	Text  string `json:"text" validate:"required,max=4000"`
	Marks int    `json:"marks" validate:"gte=0"`
}

// Validate checks the validate tags of v. Failures are returned as a
// *ValidationError keyed by lowercased field path.
func Validate(v any) error { return validateStruct(v) }

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe.Namespace())] = ruleMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldName turns "QuestionInput.Choices[1].Text" into "choices[1].text".
func fieldName(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "needs at least " + fe.Param() + " entries"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be an email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

func (in QuestionInput) check() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	correct := 0
	for _, c := range in.Choices {
		if c.Correct {
			correct++
		}
	}
	if correct != 1 {
		return invalid("choices", "exactly one choice must be correct")
	}
	return nil
}

// CreateExam creates a draft exam.
func (s *Service) CreateExam(ctx context.Context, actor model.User, in ExamInput) (int64, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	if err := validateStruct(in); err != nil {
		return 0, err
	}
	id, err := s.store.CreateExam(ctx, model.Exam{
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		TotalMarks:      in.TotalMarks,
		Status:          model.ExamDraft,
		CreatedBy:       actor.ID,
	})
	if err != nil {
		return 0, err
	}
	s.logActivity(ctx, actor.ID, model.ActivityExam, "Created Exam: "+in.Title, Origin{})
	return id, nil
}

// UpdateExam edits an exam that is not closed.
func (s *Service) UpdateExam(ctx context.Context, actor model.User, examID int64, in ExamInput) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return notFoundAs(err, "exam", examID)
	}
	if exam.Status == model.ExamClosed {
		return fmt.Errorf("edit closed exam: %w", ErrInvalidTransition)
	}
	exam.Title = strings.TrimSpace(in.Title)
	exam.Description = in.Description
	exam.DurationMinutes = in.DurationMinutes
	exam.TotalMarks = in.TotalMarks
	return notFoundAs(s.store.UpdateExam(ctx, *exam), "exam", examID)
}

// AddQuestion appends a question with exactly one correct choice.
func (s *Service) AddQuestion(ctx context.Context, actor model.User, examID int64, in QuestionInput) (int64, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	if err := in.check(); err != nil {
		return 0, err
	}
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return 0, notFoundAs(err, "exam", examID)
	}
	q := model.Question{
		ExamID: examID,
		Text:   strings.TrimSpace(in.Text),
		Type:   model.QuestionMultipleChoice,
		Marks:  in.Marks,
	}
	for _, c := range in.Choices {
		q.Choices = append(q.Choices, model.Choice{Text: strings.TrimSpace(c.Text), IsCorrect: c.Correct})
	}
	return s.store.CreateQuestion(ctx, q)
}

// UpdateQuestion edits a question. Changed points apply to later grading
// and regrading.
func (s *Service) UpdateQuestion(ctx context.Context, actor model.User, questionID int64, in QuestionEdit) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	err := s.store.UpdateQuestion(ctx, model.Question{ID: questionID, Text: strings.TrimSpace(in.Text), Marks: in.Marks})
	return notFoundAs(err, "question", questionID)
}

// DeleteQuestion removes a question no answer refers to.
func (s *Service) DeleteQuestion(ctx context.Context, actor model.User, questionID int64) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	n, err := s.store.CountAnswersForQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrQuestionInUse
	}
	return notFoundAs(s.store.DeleteQuestion(ctx, questionID), "question", questionID)
}

// ExamDetail is the coordinator view of an exam.
type ExamDetail struct {
	Exam       model.Exam
	Questions  []model.Question
	Validation marks.Validation
	Summary    marks.Summary
}

// GetExam returns an exam with its questions and weighting summary.
func (s *Service) GetExam(ctx context.Context, actor model.User, examID int64) (*ExamDetail, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, notFoundAs(err, "exam", examID)
	}
	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	return &ExamDetail{
		Exam:       *exam,
		Questions:  questions,
		Validation: marks.Validate(exam.TotalMarks, marks.PointsOf(questions)),
		Summary:    marks.Summarize(*exam, questions),
	}, nil
}

// ListExams returns all exams for staff.
func (s *Service) ListExams(ctx context.Context, actor model.User) ([]model.Exam, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.store.ListExams(ctx)
}

// OpenExams returns the exams a student may currently enter.
func (s *Service) OpenExams(ctx context.Context, student model.Student) ([]model.Exam, error) {
	all, err := s.store.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Exam
	for _, e := range all {
		if e.Status.Open() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, actor model.User, examID int64, to model.ExamStatus, verb string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return notFoundAs(err, "exam", examID)
	}
	if _, err := exam.Status.Transition(to); err != nil {
		return err
	}
	err = s.store.SetExamStatus(ctx, examID, exam.Status, to)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("exam %d changed concurrently: %w", examID, ErrInvalidTransition)
	}
	if err != nil {
		return notFoundAs(err, "exam", examID)
	}
	s.logActivity(ctx, actor.ID, model.ActivityExam, verb+" Exam: "+exam.Title, Origin{})
	return nil
}

// Publish makes a draft exam visible for password entry.
func (s *Service) Publish(ctx context.Context, actor model.User, examID int64) error {
	return s.transition(ctx, actor, examID, model.ExamPublished, "Published")
}

// Activate starts a sitting.
func (s *Service) Activate(ctx context.Context, actor model.User, examID int64) error {
	return s.transition(ctx, actor, examID, model.ExamActive, "Activated")
}

// Pause takes an active exam back to draft, which hides it from students
// and stops password redemption.
func (s *Service) Pause(ctx context.Context, actor model.User, examID int64) error {
	return s.transition(ctx, actor, examID, model.ExamDraft, "Paused")
}

// Close ends an exam. Attempts keep their state.
func (s *Service) Close(ctx context.Context, actor model.User, examID int64) error {
	return s.transition(ctx, actor, examID, model.ExamClosed, "Closed")
}

// PublishResults controls whether students can review their answers.
func (s *Service) PublishResults(ctx context.Context, actor model.User, examID int64, published bool) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.store.SetResultsPublished(ctx, examID, published); err != nil {
		return notFoundAs(err, "exam", examID)
	}
	verb := "Published results of"
	if !published {
		verb = "Withdrew results of"
	}
	s.logActivity(ctx, actor.ID, model.ActivityExam, fmt.Sprintf("%s exam %d", verb, examID), Origin{})
	return nil
}

// IssuedPassword is a freshly generated exam password. Secret is the only
// copy of the plaintext.
type IssuedPassword struct {
	PasswordID  int64  `json:"password_id"`
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	Secret      string `json:"secret"`
}

// newSecret returns length uppercase hex characters of a random UUID.
func newSecret(length int) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[:length]
}

func (s *Service) passwordLength(length int) (int, error) {
	if length == 0 {
		length = s.cfg.PasswordLength
	}
	if length < 4 || length > 32 {
		return 0, invalid("length", "must be between 4 and 32")
	}
	return length, nil
}

func (s *Service) hashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.cfg.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// GeneratePasswords issues a password to every student for an exam. A
// student without a password gets a new one, an unused password is
// regenerated and a used one is left alone.
func (s *Service) GeneratePasswords(ctx context.Context, actor model.User, examID int64, length int) ([]IssuedPassword, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	length, err := s.passwordLength(length)
	if err != nil {
		return nil, err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, notFoundAs(err, "exam", examID)
	}
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	var issued []IssuedPassword
	for _, st := range students {
		ip, err := s.issue(ctx, examID, st, length)
		if errors.Is(err, ErrPasswordUsed) {
			continue
		}
		if err != nil {
			return issued, err
		}
		issued = append(issued, *ip)
	}
	slog.Info("generated exam passwords", "exam_id", examID, "count", len(issued))
	s.logActivity(ctx, actor.ID, model.ActivityExam,
		fmt.Sprintf("Generated %d passwords for Exam: %s", len(issued), exam.Title), Origin{})
	return issued, nil
}

// issue gives a student a fresh secret for an exam. An unused password is
// regenerated in place. ErrPasswordUsed is returned if the student already
// redeemed theirs.
func (s *Service) issue(ctx context.Context, examID int64, st model.Student, length int) (*IssuedPassword, error) {
	existing, err := s.store.LatestPassword(ctx, examID, st.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsUsed {
		return nil, ErrPasswordUsed
	}
	secret := newSecret(length)
	hash, err := s.hashSecret(secret)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.cfg.PasswordTTL)
	var id int64
	if existing == nil {
		id, err = s.store.InsertPassword(ctx, examID, st.ID, hash, expires)
	} else {
		id = existing.ID
		err = s.store.ReplacePasswordSecret(ctx, id, hash, expires)
	}
	if errors.Is(err, store.ErrConflict) {
		// Redeemed while we were generating.
		return nil, ErrPasswordUsed
	}
	if err != nil {
		return nil, err
	}
	return &IssuedPassword{PasswordID: id, StudentID: st.ID, StudentName: st.FullName, Secret: secret}, nil
}

// AssignStudent issues a password for an exam to a single student.
func (s *Service) AssignStudent(ctx context.Context, actor model.User, examID, studentID int64, length int) (*IssuedPassword, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	length, err := s.passwordLength(length)
	if err != nil {
		return nil, err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, notFoundAs(err, "exam", examID)
	}
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, notFoundAs(err, "student", studentID)
	}
	ip, err := s.issue(ctx, examID, *st, length)
	if err != nil {
		return nil, err
	}
	s.logActivity(ctx, actor.ID, model.ActivityExam,
		fmt.Sprintf("Assigned %s to Exam: %s", st.FullName, exam.Title), Origin{})
	return ip, nil
}

// Unassign withdraws the unused password of a student so they can no
// longer start the exam. A redeemed password cannot be withdrawn.
func (s *Service) Unassign(ctx context.Context, actor model.User, examID, studentID int64) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return notFoundAs(err, "exam", examID)
	}
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return notFoundAs(err, "student", studentID)
	}
	err = s.store.DeleteUnusedPasswords(ctx, examID, studentID)
	switch {
	case errors.Is(err, store.ErrConflict):
		return ErrPasswordUsed
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("password of student %d for exam %d: %w", studentID, examID, ErrNotFound)
	case err != nil:
		return err
	}
	s.logActivity(ctx, actor.ID, model.ActivityExam,
		fmt.Sprintf("Removed %s from Exam: %s", st.FullName, exam.Title), Origin{})
	return nil
}

// RegeneratePassword replaces the secret of one unused password.
func (s *Service) RegeneratePassword(ctx context.Context, actor model.User, passwordID int64) (*IssuedPassword, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	p, err := s.store.GetPassword(ctx, passwordID)
	if err != nil {
		return nil, notFoundAs(err, "password", passwordID)
	}
	if p.IsUsed {
		return nil, ErrPasswordUsed
	}
	length, _ := s.passwordLength(0)
	secret := newSecret(length)
	hash, err := s.hashSecret(secret)
	if err != nil {
		return nil, err
	}
	err = s.store.ReplacePasswordSecret(ctx, p.ID, hash, s.now().Add(s.cfg.PasswordTTL))
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrPasswordUsed
	}
	if err != nil {
		return nil, notFoundAs(err, "password", passwordID)
	}
	st, err := s.store.GetStudent(ctx, p.StudentID)
	if err != nil {
		return nil, err
	}
	return &IssuedPassword{PasswordID: p.ID, StudentID: st.ID, StudentName: st.FullName, Secret: secret}, nil
}

// ListPasswords shows which students hold a password for an exam.
func (s *Service) ListPasswords(ctx context.Context, actor model.User, examID int64) ([]model.PasswordAssignment, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return nil, notFoundAs(err, "exam", examID)
	}
	return s.store.ListPasswords(ctx, examID)
}

// ImportExam creates a draft exam with its questions from a definition.
func (s *Service) ImportExam(ctx context.Context, actor model.User, def model.ExamImport) (int64, error) {
	in := ExamInput{
		Title:           def.Title,
		Description:     def.Description,
		DurationMinutes: def.DurationMinutes,
		TotalMarks:      def.TotalMarks,
	}
	var questions []QuestionInput
	for i, q := range def.Questions {
		qi := QuestionInput{Text: q.Text, Marks: q.Marks}
		for _, c := range q.Choices {
			qi.Choices = append(qi.Choices, ChoiceInput{Text: c.Text, Correct: c.Correct})
		}
		if err := qi.check(); err != nil {
			return 0, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, qi)
	}

	id, err := s.CreateExam(ctx, actor, in)
	if err != nil {
		return 0, err
	}
	for i, qi := range questions {
		if _, err := s.AddQuestion(ctx, actor, id, qi); err != nil {
			return id, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return id, nil
}
