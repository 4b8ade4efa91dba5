package exam

import (
	"context"
	"errors"
	"testing"

	"github.com/hems/examhall/internal/model"
)

func TestAuthoringValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID, err := f.svc.CreateExam(ctx, f.coord, ExamInput{Title: "Networks", DurationMinutes: 45, TotalMarks: 20})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	tests := []struct {
		name  string
		in    QuestionInput
		field string
	}{
		{"no correct choice", QuestionInput{Text: "Q", Marks: 1, Choices: []ChoiceInput{{Text: "a"}, {Text: "b"}}}, "choices"},
		{"two correct choices", QuestionInput{Text: "Q", Marks: 1, Choices: []ChoiceInput{{Text: "a", Correct: true}, {Text: "b", Correct: true}}}, "choices"},
		{"single choice", QuestionInput{Text: "Q", Marks: 1, Choices: []ChoiceInput{{Text: "a", Correct: true}}}, "choices"},
		{"empty choice text", QuestionInput{Text: "Q", Marks: 1, Choices: []ChoiceInput{{Text: "a", Correct: true}, {}}}, "choices[1].text"},
		{"missing text", QuestionInput{Marks: 1, Choices: []ChoiceInput{{Text: "a", Correct: true}, {Text: "b"}}}, "text"},
		{"negative marks", QuestionInput{Text: "Q", Marks: -1, Choices: []ChoiceInput{{Text: "a", Correct: true}, {Text: "b"}}}, "marks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddQuestion(ctx, f.coord, examID, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected field %q in %v", tt.field, verr.Fields)
			}
		})
	}

	_, err = f.svc.CreateExam(ctx, f.coord, ExamInput{DurationMinutes: 0, TotalMarks: 10})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "durationminutes"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected field %q in %v", field, verr.Fields)
		}
	}
}

func TestStaffOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceUser, _ := f.student(t, "alice")
	inactive := f.coord
	inactive.Active = false

	for _, actor := range []model.User{aliceUser, inactive} {
		if _, err := f.svc.CreateExam(ctx, actor, ExamInput{Title: "X", DurationMinutes: 10, TotalMarks: 10}); !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", actor.Username, err)
		}
		if _, err := f.svc.GeneratePasswords(ctx, actor, 1, 0); !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", actor.Username, err)
		}
	}
}

func TestExamLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID, err := f.svc.CreateExam(ctx, f.coord, ExamInput{Title: "Databases", DurationMinutes: 60, TotalMarks: 100})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	steps := []struct {
		name string
		op   func() error
		want error
	}{
		{"pause draft", func() error { return f.svc.Pause(ctx, f.coord, examID) }, ErrInvalidTransition},
		{"publish", func() error { return f.svc.Publish(ctx, f.coord, examID) }, nil},
		{"publish twice", func() error { return f.svc.Publish(ctx, f.coord, examID) }, ErrInvalidTransition},
		{"activate", func() error { return f.svc.Activate(ctx, f.coord, examID) }, nil},
		{"pause", func() error { return f.svc.Pause(ctx, f.coord, examID) }, nil},
		{"pause paused", func() error { return f.svc.Pause(ctx, f.coord, examID) }, ErrInvalidTransition},
		{"close paused", func() error { return f.svc.Close(ctx, f.coord, examID) }, nil},
		{"reactivate closed", func() error { return f.svc.Activate(ctx, f.coord, examID) }, ErrInvalidTransition},
		{"edit closed", func() error {
			return f.svc.UpdateExam(ctx, f.coord, examID, ExamInput{Title: "Databases II", DurationMinutes: 60, TotalMarks: 100})
		}, ErrInvalidTransition},
		{"missing exam", func() error { return f.svc.Publish(ctx, f.coord, 9999) }, ErrNotFound},
	}
	for _, step := range steps {
		err := step.op()
		if step.want == nil && err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if step.want != nil && !errors.Is(err, step.want) {
			t.Fatalf("%s: expected %v, got %v", step.name, step.want, err)
		}
	}

	exam, err := f.store.GetExam(ctx, examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Status != model.ExamClosed || exam.Title != "Databases" {
		t.Errorf("unexpected exam: %+v", exam)
	}
}

func TestDeleteQuestionInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.student(t, "alice")
	examID, qs := f.exam(t, 20, 10, 10)
	attemptID := f.start(t, examID, alice)
	f.answer(t, alice, attemptID, qs[0], 0)

	if err := f.svc.DeleteQuestion(ctx, f.coord, qs[0].ID); !errors.Is(err, ErrQuestionInUse) {
		t.Errorf("expected ErrQuestionInUse, got %v", err)
	}
	if err := f.svc.DeleteQuestion(ctx, f.coord, qs[1].ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if err := f.svc.DeleteQuestion(ctx, f.coord, qs[1].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	detail, err := f.svc.GetExam(ctx, f.coord, examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if len(detail.Questions) != 1 {
		t.Errorf("expected 1 question left, got %d", len(detail.Questions))
	}
}

func TestGeneratePasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.student(t, "alice")
	_, bob := f.student(t, "bob")
	examID, _ := f.exam(t, 10, 10)

	if _, err := f.svc.GeneratePasswords(ctx, f.coord, examID, 3); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for short length, got %v", err)
	}

	first, err := f.svc.GeneratePasswords(ctx, f.coord, examID, 12)
	if err != nil {
		t.Fatalf("GeneratePasswords: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 passwords, got %d", len(first))
	}
	for _, p := range first {
		if len(p.Secret) != 12 {
			t.Errorf("expected 12 character secret, got %q", p.Secret)
		}
	}

	if _, err := f.svc.Redeem(ctx, alice, examID, secretOf(first, alice.ID), Origin{}); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	second, err := f.svc.GeneratePasswords(ctx, f.coord, examID, 0)
	if err != nil {
		t.Fatalf("GeneratePasswords: %v", err)
	}
	if len(second) != 1 || second[0].StudentID != bob.ID {
		t.Fatalf("expected only bob to get a new password, got %+v", second)
	}
	if second[0].PasswordID != passwordOf(first, bob.ID) {
		t.Errorf("expected bob's password row to be reused")
	}
	if _, err := f.svc.Redeem(ctx, bob, examID, secretOf(first, bob.ID), Origin{}); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected the replaced secret to be rejected, got %v", err)
	}

	if _, err := f.svc.RegeneratePassword(ctx, f.coord, passwordOf(first, alice.ID)); !errors.Is(err, ErrPasswordUsed) {
		t.Errorf("expected ErrPasswordUsed, got %v", err)
	}
	again, err := f.svc.RegeneratePassword(ctx, f.coord, second[0].PasswordID)
	if err != nil {
		t.Fatalf("RegeneratePassword: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, bob, examID, again.Secret, Origin{}); err != nil {
		t.Errorf("Redeem with regenerated secret: %v", err)
	}

	list, err := f.svc.ListPasswords(ctx, f.coord, examID)
	if err != nil {
		t.Fatalf("ListPasswords: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 password rows, got %d", len(list))
	}
	for _, p := range list {
		if !p.IsUsed {
			t.Errorf("expected %s's password to be used", p.StudentName)
		}
	}
}

func secretOf(issued []IssuedPassword, studentID int64) string {
	for _, p := range issued {
		if p.StudentID == studentID {
			return p.Secret
		}
	}
	return ""
}

func passwordOf(issued []IssuedPassword, studentID int64) int64 {
	for _, p := range issued {
		if p.StudentID == studentID {
			return p.PasswordID
		}
	}
	return 0
}

func TestImportExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := model.ExamImport{
		Title: "Imported", DurationMinutes: 20, TotalMarks: 10,
		Questions: []model.QuestionImport{
			{Text: "2+2?", Marks: 1, Choices: []model.ChoiceImport{{Text: "4", Correct: true}, {Text: "5"}}},
			{Text: "3+3?", Marks: 1, Choices: []model.ChoiceImport{{Text: "6", Correct: true}, {Text: "7"}}},
		},
	}
	id, err := f.svc.ImportExam(ctx, f.coord, def)
	if err != nil {
		t.Fatalf("ImportExam: %v", err)
	}
	detail, err := f.svc.GetExam(ctx, f.coord, id)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if detail.Exam.Status != model.ExamDraft || len(detail.Questions) != 2 {
		t.Errorf("unexpected import: %+v", detail)
	}

	def.Questions[1].Choices[1].Correct = true
	if _, err := f.svc.ImportExam(ctx, f.coord, def); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	exams, _ := f.svc.ListExams(ctx, f.coord)
	if len(exams) != 1 {
		t.Errorf("invalid import must not create an exam, got %d exams", len(exams))
	}
}

func TestPausedExamRejectsRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.student(t, "alice")
	examID, _ := f.exam(t, 10, 10)
	if err := f.svc.Activate(ctx, f.coord, examID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	secret := f.secretFor(t, examID, alice)

	if err := f.svc.Pause(ctx, f.coord, examID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	exam, err := f.store.GetExam(ctx, examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Status != model.ExamDraft {
		t.Errorf("status after pause = %s, want draft", exam.Status)
	}
	open, err := f.svc.OpenExams(ctx, alice)
	if err != nil {
		t.Fatalf("OpenExams: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("paused exam still listed: %+v", open)
	}
	if _, err := f.svc.Redeem(ctx, alice, examID, secret, Origin{}); !errors.Is(err, ErrExamUnavailable) {
		t.Fatalf("Redeem on paused exam: expected ErrExamUnavailable, got %v", err)
	}

	// Resuming makes the same password usable again.
	if err := f.svc.Activate(ctx, f.coord, examID); err != nil {
		t.Fatalf("Activate after pause: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, alice, examID, secret, Origin{}); err != nil {
		t.Fatalf("Redeem after resume: %v", err)
	}
}

func TestAssignAndUnassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.student(t, "alice")
	_, bob := f.student(t, "bob")
	examID, _ := f.exam(t, 10, 10)

	tests := []struct {
		name      string
		examID    int64
		studentID int64
		length    int
		wantErr   error
	}{
		{"unknown exam", 9999, alice.ID, 0, ErrNotFound},
		{"unknown student", examID, 9999, 0, ErrNotFound},
		{"short length", examID, alice.ID, 2, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.AssignStudent(ctx, f.coord, tt.examID, tt.studentID, tt.length); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	first, err := f.svc.AssignStudent(ctx, f.coord, examID, alice.ID, 10)
	if err != nil {
		t.Fatalf("AssignStudent: %v", err)
	}
	if first.StudentID != alice.ID || len(first.Secret) != 10 {
		t.Errorf("unexpected issued password: %+v", first)
	}
	assigned, err := f.store.ListAssignedStudents(ctx, examID)
	if err != nil {
		t.Fatalf("ListAssignedStudents: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != alice.ID {
		t.Fatalf("expected only alice to be assigned, got %+v", assigned)
	}

	// Assigning again replaces the unused secret on the same row.
	second, err := f.svc.AssignStudent(ctx, f.coord, examID, alice.ID, 0)
	if err != nil {
		t.Fatalf("AssignStudent again: %v", err)
	}
	if second.PasswordID != first.PasswordID {
		t.Errorf("expected password row %d to be reused, got %d", first.PasswordID, second.PasswordID)
	}
	if _, err := f.svc.Redeem(ctx, alice, examID, first.Secret, Origin{}); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected the old secret to be rejected, got %v", err)
	}

	if err := f.svc.Unassign(ctx, f.coord, examID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound unassigning bob, got %v", err)
	}
	if err := f.svc.Unassign(ctx, f.coord, examID, alice.ID); err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, alice, examID, second.Secret, Origin{}); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected unassigned student to be rejected, got %v", err)
	}
	if assigned, _ := f.store.ListAssignedStudents(ctx, examID); len(assigned) != 0 {
		t.Errorf("expected nobody assigned, got %+v", assigned)
	}

	// A redeemed password cannot be replaced or withdrawn.
	bobPass, err := f.svc.AssignStudent(ctx, f.coord, examID, bob.ID, 0)
	if err != nil {
		t.Fatalf("AssignStudent bob: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, bob, examID, bobPass.Secret, Origin{}); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if _, err := f.svc.AssignStudent(ctx, f.coord, examID, bob.ID, 0); !errors.Is(err, ErrPasswordUsed) {
		t.Errorf("expected ErrPasswordUsed reassigning bob, got %v", err)
	}
	if err := f.svc.Unassign(ctx, f.coord, examID, bob.ID); !errors.Is(err, ErrPasswordUsed) {
		t.Errorf("expected ErrPasswordUsed unassigning bob, got %v", err)
	}

	student := model.User{Role: model.UserRoleStudent, Active: true}
	if _, err := f.svc.AssignStudent(ctx, student, examID, alice.ID, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for a student, got %v", err)
	}
	if err := f.svc.Unassign(ctx, student, examID, alice.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for a student, got %v", err)
	}
}
