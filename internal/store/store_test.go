package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hems/examhall/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestStudent(t *testing.T, s *Store, username, fullName string) model.Student {
	t.Helper()
	ctx := context.Background()
	uid, err := s.CreateUser(ctx, model.User{
		Username: username, DisplayName: fullName, PasswordHash: "x",
		Role: model.UserRoleStudent, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	st := model.Student{UserID: uid, FullName: fullName, Email: username + "@example.edu"}
	st.ID, err = s.CreateStudent(ctx, st)
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return st
}

// insertTestExam creates an exam with one question per entry of points;
// every question has a correct first choice and a wrong second choice.
func insertTestExam(t *testing.T, s *Store, totalMarks int, points ...int) (model.Exam, []model.Question) {
	t.Helper()
	ctx := context.Background()
	coordID, err := s.CreateUser(ctx, model.User{
		Username: "coordinator", PasswordHash: "x",
		Role: model.UserRoleCoordinator, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	id, err := s.CreateExam(ctx, model.Exam{
		Title: "Databases", DurationMinutes: 30, TotalMarks: totalMarks, CreatedBy: coordID,
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	for i, p := range points {
		_, err := s.CreateQuestion(ctx, model.Question{
			ExamID: id, Text: fmt.Sprintf("Q%d", i+1), Marks: p,
			Choices: []model.Choice{{Text: "right", IsCorrect: true}, {Text: "wrong"}},
		})
		if err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
	}
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	qs, err := s.ListQuestions(ctx, id)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	return *exam, qs
}

func countResults(t *testing.T, s *Store, attemptID int64) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results WHERE attempt_id = $1`, attemptID).Scan(&n)
	if err != nil {
		t.Fatalf("count results: %v", err)
	}
	return n
}

func TestUserAndStudent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	st := insertTestStudent(t, s, "alice", "Alice Moyo")

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.Role != model.UserRoleStudent || !u.Active {
		t.Errorf("unexpected user: %+v", u)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	got, err := s.GetStudentByUserID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetStudentByUserID: %v", err)
	}
	if got.ID != st.ID || got.FullName != "Alice Moyo" {
		t.Errorf("unexpected student: %+v", got)
	}

	if err := s.ToggleUserActive(ctx, u.ID); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(ctx, u.ID)
	if u.Active {
		t.Error("expected user to be inactive after toggle")
	}
	if err := s.ToggleUserActive(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound toggling missing user, got %v", err)
	}

	insertTestStudent(t, s, "bob", "Bob Banda")
	students, err := s.ListStudents(ctx)
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(students) != 2 || students[0].FullName != "Alice Moyo" {
		t.Errorf("unexpected students: %+v", students)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := insertTestStudent(t, s, "alice", "Alice")

	token, err := s.CreateAuthSession(ctx, st.UserID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	sess, err := s.GetAuthSession(ctx, token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess.UserID != st.UserID {
		t.Errorf("expected user %d, got %d", st.UserID, sess.UserID)
	}

	n, err := s.CleanupExpiredSessions(ctx, time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged session, got %d", n)
	}
	if _, err := s.GetAuthSession(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h, err := s.ImportedFileHash(ctx, "networks.json")
	if err != nil {
		t.Fatalf("ImportedFileHash: %v", err)
	}
	if h != "" {
		t.Errorf("expected empty hash, got %q", h)
	}
	for _, v := range []string{"abc", "def"} {
		if err := s.SetImportedFileHash(ctx, "networks.json", v); err != nil {
			t.Fatalf("SetImportedFileHash: %v", err)
		}
	}
	h, _ = s.ImportedFileHash(ctx, "networks.json")
	if h != "def" {
		t.Errorf("expected overwritten hash def, got %q", h)
	}
}

func TestExamAndQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, qs := insertTestExam(t, s, 50, 30, 70)

	if exam.Status != model.ExamDraft {
		t.Errorf("expected draft exam, got %s", exam.Status)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Order != 1 || qs[1].Order != 2 {
		t.Errorf("expected orders 1,2, got %d,%d", qs[0].Order, qs[1].Order)
	}
	if len(qs[0].Choices) != 2 || !qs[0].Choices[0].IsCorrect {
		t.Errorf("unexpected choices: %+v", qs[0].Choices)
	}

	points, err := s.QuestionPoints(ctx, exam.ID)
	if err != nil {
		t.Fatalf("QuestionPoints: %v", err)
	}
	if len(points) != 2 || points[0].Marks != 30 || points[1].Marks != 70 {
		t.Errorf("unexpected points: %+v", points)
	}

	correct, err := s.CorrectChoices(ctx, exam.ID)
	if err != nil {
		t.Fatalf("CorrectChoices: %v", err)
	}
	if correct[qs[0].ID] != qs[0].Choices[0].ID {
		t.Errorf("unexpected correct choice map: %v", correct)
	}

	qid, err := s.ChoiceQuestion(ctx, qs[1].Choices[1].ID)
	if err != nil || qid != qs[1].ID {
		t.Errorf("ChoiceQuestion = %d, %v; want %d", qid, err, qs[1].ID)
	}

	if err := s.SetExamStatus(ctx, exam.ID, model.ExamDraft, model.ExamPublished); err != nil {
		t.Fatalf("SetExamStatus: %v", err)
	}
	if err := s.SetExamStatus(ctx, exam.ID, model.ExamDraft, model.ExamActive); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on stale status, got %v", err)
	}
	if err := s.SetExamStatus(ctx, 9999, model.ExamDraft, model.ExamActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing exam, got %v", err)
	}

	qs[0].Marks = 40
	if err := s.UpdateQuestion(ctx, qs[0]); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	q, err := s.GetQuestion(ctx, qs[0].ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Marks != 40 || len(q.Choices) != 2 {
		t.Errorf("unexpected question after update: %+v", q)
	}

	if err := s.DeleteQuestion(ctx, qs[1].ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	remaining, _ := s.ListQuestions(ctx, exam.ID)
	if len(remaining) != 1 {
		t.Errorf("expected 1 question after delete, got %d", len(remaining))
	}
}

func TestRedeemPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, _ := insertTestExam(t, s, 10, 10)
	st := insertTestStudent(t, s, "alice", "Alice")
	now := time.Now()

	pid, err := s.InsertPassword(ctx, exam.ID, st.ID, "hash", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("InsertPassword: %v", err)
	}
	if _, err := s.InsertPassword(ctx, exam.ID, st.ID, "hash2", now.Add(time.Hour)); err == nil {
		t.Error("expected second unused password for the same pair to be rejected")
	}

	p, err := s.RedeemablePassword(ctx, exam.ID, st.ID, now)
	if err != nil {
		t.Fatalf("RedeemablePassword: %v", err)
	}
	if p.ID != pid {
		t.Errorf("expected password %d, got %d", pid, p.ID)
	}

	attemptID, err := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now)
	if err != nil {
		t.Fatalf("RedeemPassword: %v", err)
	}
	if _, err := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on second redeem, got %v", err)
	}

	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if a.Status != model.AttemptInProgress || a.EndTime != nil {
		t.Errorf("unexpected attempt: %+v", a)
	}
	if _, err := s.RedeemablePassword(ctx, exam.ID, st.ID, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no redeemable password, got %v", err)
	}

	// A fresh password cannot open a second attempt while the first is open.
	pid2, err := s.InsertPassword(ctx, exam.ID, st.ID, "hash3", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("InsertPassword: %v", err)
	}
	if _, err := s.RedeemPassword(ctx, pid2, exam.ID, st.ID, now); !errors.Is(err, ErrOpenAttempt) {
		t.Errorf("expected ErrOpenAttempt, got %v", err)
	}
	p2, _ := s.GetPassword(ctx, pid2)
	if p2.IsUsed {
		t.Error("password must stay unused when redemption is rolled back")
	}
}

func TestRedeemExpiredPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, _ := insertTestExam(t, s, 10, 10)
	st := insertTestStudent(t, s, "alice", "Alice")
	now := time.Now()

	pid, err := s.InsertPassword(ctx, exam.ID, st.ID, "hash", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("InsertPassword: %v", err)
	}
	if _, err := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for expired password, got %v", err)
	}
	if err := s.ReplacePasswordSecret(ctx, pid, "fresh", now.Add(time.Hour)); err != nil {
		t.Fatalf("ReplacePasswordSecret: %v", err)
	}
	if _, err := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now); err != nil {
		t.Fatalf("RedeemPassword after regenerate: %v", err)
	}
	if err := s.ReplacePasswordSecret(ctx, pid, "again", now.Add(time.Hour)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict regenerating a used password, got %v", err)
	}
}

func TestDeleteUnusedPasswords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, _ := insertTestExam(t, s, 10, 10)
	alice := insertTestStudent(t, s, "alice", "Alice")
	bob := insertTestStudent(t, s, "bob", "Bob")
	now := time.Now()

	if err := s.DeleteUnusedPasswords(ctx, exam.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound without a password, got %v", err)
	}
	if _, err := s.InsertPassword(ctx, exam.ID, alice.ID, "hash", now.Add(time.Hour)); err != nil {
		t.Fatalf("InsertPassword: %v", err)
	}
	if err := s.DeleteUnusedPasswords(ctx, exam.ID, alice.ID); err != nil {
		t.Fatalf("DeleteUnusedPasswords: %v", err)
	}
	if list, _ := s.ListPasswords(ctx, exam.ID); len(list) != 0 {
		t.Errorf("expected no passwords left, got %d", len(list))
	}

	pid, err := s.InsertPassword(ctx, exam.ID, bob.ID, "hash", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("InsertPassword: %v", err)
	}
	if _, err := s.RedeemPassword(ctx, pid, exam.ID, bob.ID, now); err != nil {
		t.Fatalf("RedeemPassword: %v", err)
	}
	if err := s.DeleteUnusedPasswords(ctx, exam.ID, bob.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for a redeemed password, got %v", err)
	}
	if list, _ := s.ListPasswords(ctx, exam.ID); len(list) != 1 {
		t.Errorf("redeemed password must be kept, got %d rows", len(list))
	}
}

func TestAttemptTransitionsAndAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, qs := insertTestExam(t, s, 10, 5, 5)
	st := insertTestStudent(t, s, "alice", "Alice")
	now := time.Now()
	pid, _ := s.InsertPassword(ctx, exam.ID, st.ID, "hash", now.Add(time.Hour))
	attemptID, err := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now)
	if err != nil {
		t.Fatalf("RedeemPassword: %v", err)
	}

	choice := qs[0].Choices[1].ID
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: attemptID, QuestionID: qs[0].ID, SelectedChoiceID: &choice, UpdatedAt: now}); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}
	choice = qs[0].Choices[0].ID
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: attemptID, QuestionID: qs[0].ID, SelectedChoiceID: &choice, IsFlagged: true, UpdatedAt: now}); err != nil {
		t.Fatalf("UpsertAnswer overwrite: %v", err)
	}
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: attemptID, QuestionID: qs[1].ID, IsFlagged: true, UpdatedAt: now}); err != nil {
		t.Fatalf("UpsertAnswer flag only: %v", err)
	}

	answers, err := s.ListAnswers(ctx, attemptID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if *answers[0].SelectedChoiceID != qs[0].Choices[0].ID || !answers[0].IsFlagged {
		t.Errorf("expected last write to win, got %+v", answers[0])
	}
	if answers[1].SelectedChoiceID != nil {
		t.Errorf("expected no selection, got %v", *answers[1].SelectedChoiceID)
	}

	if err := s.TransitionAttempt(ctx, attemptID, model.AttemptInProgress, model.AttemptBlocked, nil); err != nil {
		t.Fatalf("block: %v", err)
	}
	a, _ := s.GetAttempt(ctx, attemptID)
	if !a.IsBlocked || a.Status != model.AttemptBlocked {
		t.Errorf("expected blocked attempt, got %+v", a)
	}
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: attemptID, QuestionID: qs[1].ID, UpdatedAt: now}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict writing to blocked attempt, got %v", err)
	}
	if err := s.TransitionAttempt(ctx, attemptID, model.AttemptBlocked, model.AttemptInProgress, nil); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	end := now.Add(10 * time.Minute)
	if err := s.TransitionAttempt(ctx, attemptID, model.AttemptInProgress, model.AttemptSubmitted, &end); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.TransitionAttempt(ctx, attemptID, model.AttemptInProgress, model.AttemptSubmitted, &end); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on second submit, got %v", err)
	}
	a, _ = s.GetAttempt(ctx, attemptID)
	if a.EndTime == nil || a.EndTime.Unix() != end.Unix() || a.IsBlocked {
		t.Errorf("unexpected submitted attempt: %+v", a)
	}
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: attemptID, QuestionID: qs[1].ID, UpdatedAt: now}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict writing to submitted attempt, got %v", err)
	}
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: 9999, QuestionID: qs[1].ID, UpdatedAt: now}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing attempt, got %v", err)
	}

	ungraded, err := s.ListUngradedAttempts(ctx)
	if err != nil {
		t.Fatalf("ListUngradedAttempts: %v", err)
	}
	if len(ungraded) != 1 || ungraded[0].ID != attemptID {
		t.Errorf("expected attempt %d ungraded, got %+v", attemptID, ungraded)
	}

	// Questions with recorded answers are delete-restricted.
	if err := s.DeleteQuestion(ctx, qs[0].ID); err == nil {
		t.Error("expected delete of answered question to fail")
	}
	n, err := s.CountAnswersForQuestion(ctx, qs[0].ID)
	if err != nil || n != 1 {
		t.Errorf("CountAnswersForQuestion = %d, %v; want 1", n, err)
	}
}

func TestUpsertResultIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, _ := insertTestExam(t, s, 10, 10)
	st := insertTestStudent(t, s, "alice", "Alice")
	now := time.Now()
	pid, _ := s.InsertPassword(ctx, exam.ID, st.ID, "hash", now.Add(time.Hour))
	attemptID, _ := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now)

	first, err := s.UpsertResult(ctx, model.Result{AttemptID: attemptID, TotalScore: 3, Earned: 3, Percentage: 30, Grade: "F", PassStatus: model.Fail, PublishedAt: now})
	if err != nil {
		t.Fatalf("UpsertResult: %v", err)
	}
	second, err := s.UpsertResult(ctx, model.Result{AttemptID: attemptID, TotalScore: 9, Earned: 9, Percentage: 90, Grade: "A", PassStatus: model.Pass, PublishedAt: now})
	if err != nil {
		t.Fatalf("UpsertResult again: %v", err)
	}
	if first != second {
		t.Errorf("expected the same row id, got %d and %d", first, second)
	}
	if n := countResults(t, s, attemptID); n != 1 {
		t.Errorf("expected exactly 1 result row, got %d", n)
	}
	r, err := s.GetResultByAttempt(ctx, attemptID)
	if err != nil {
		t.Fatalf("GetResultByAttempt: %v", err)
	}
	if r.Grade != "A" || r.PassStatus != model.Pass || r.Percentage != 90 {
		t.Errorf("expected second values to win, got %+v", r)
	}
	byExam, _ := s.ListResultsByExam(ctx, exam.ID)
	if len(byExam) != 1 {
		t.Errorf("expected 1 result for exam, got %d", len(byExam))
	}
}

func TestActivityQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, _ := insertTestExam(t, s, 10, 10)
	alice := insertTestStudent(t, s, "alice", "Alice")
	bob := insertTestStudent(t, s, "bob", "Bob")
	outsider := insertTestStudent(t, s, "carol", "Carol")
	now := time.Now()
	for _, st := range []model.Student{alice, bob} {
		if _, err := s.InsertPassword(ctx, exam.ID, st.ID, "hash", now.Add(time.Hour)); err != nil {
			t.Fatalf("InsertPassword: %v", err)
		}
	}

	entries := []model.ActivityLog{
		{UserID: alice.UserID, Kind: model.ActivityLogin, Action: "Login", Timestamp: now.Add(-2 * time.Hour)},
		{UserID: bob.UserID, Kind: model.ActivityLogin, Action: "Login", Timestamp: now.Add(-40 * time.Minute)},
		{UserID: alice.UserID, Kind: model.ActivityHeartbeat, Action: model.HeartbeatPrefix + "Q1", Timestamp: now.Add(-5 * time.Minute)},
		{UserID: alice.UserID, Kind: model.ActivityHeartbeat, Action: model.HeartbeatPrefix + "Q2", Timestamp: now.Add(-30 * time.Second)},
		{UserID: alice.UserID, Kind: model.ActivityExam, Action: "Started Exam: Databases", Timestamp: now.Add(-10 * time.Minute)},
		{UserID: outsider.UserID, Kind: model.ActivityLogin, Action: "Login", Timestamp: now},
	}
	for _, e := range entries {
		if err := s.AppendActivity(ctx, e); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	assigned, err := s.ListAssignedStudents(ctx, exam.ID)
	if err != nil {
		t.Fatalf("ListAssignedStudents: %v", err)
	}
	if len(assigned) != 2 {
		t.Errorf("expected 2 assigned students, got %d", len(assigned))
	}

	logins, err := s.RecentLogins(ctx, exam.ID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentLogins: %v", err)
	}
	if logins[alice.UserID] || !logins[bob.UserID] || logins[outsider.UserID] {
		t.Errorf("unexpected recent logins: %v", logins)
	}

	beats, err := s.LatestHeartbeats(ctx, exam.ID)
	if err != nil {
		t.Fatalf("LatestHeartbeats: %v", err)
	}
	if beats[alice.UserID].Action != model.HeartbeatPrefix+"Q2" {
		t.Errorf("expected newest heartbeat, got %+v", beats[alice.UserID])
	}
	if _, ok := beats[bob.UserID]; ok {
		t.Error("bob never sent a heartbeat")
	}

	feed, err := s.ActivityFeed(ctx, exam.ID, now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ActivityFeed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 feed entries, got %+v", feed)
	}
	if feed[0].Username != "alice" || feed[1].Username != "bob" {
		t.Errorf("expected newest first, got %+v", feed)
	}
	feed, _ = s.ActivityFeed(ctx, exam.ID, now.Add(-time.Hour), 1)
	if len(feed) != 1 {
		t.Errorf("expected feed bounded to 1, got %d", len(feed))
	}
}

func TestExportExamResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam, qs := insertTestExam(t, s, 50, 30, 70)
	st := insertTestStudent(t, s, "alice", "Alice")
	now := time.Now()
	pid, _ := s.InsertPassword(ctx, exam.ID, st.ID, "hash", now.Add(time.Hour))
	attemptID, _ := s.RedeemPassword(ctx, pid, exam.ID, st.ID, now)
	choice := qs[0].Choices[0].ID
	if err := s.UpsertAnswer(ctx, model.Answer{AttemptID: attemptID, QuestionID: qs[0].ID, SelectedChoiceID: &choice, UpdatedAt: now}); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}

	exp, err := s.ExportExamResults(ctx, exam.ID)
	if err != nil {
		t.Fatalf("ExportExamResults: %v", err)
	}
	if exp.NumQuestions != 2 || len(exp.Results) != 1 {
		t.Fatalf("unexpected export: %+v", exp)
	}
	r := exp.Results[0]
	if r.Graded {
		t.Error("attempt has no result yet")
	}
	if !r.Questions[0].Correct || r.Questions[0].Weighted != 15 || r.Questions[0].ChoiceText != "right" {
		t.Errorf("unexpected first question: %+v", r.Questions[0])
	}
	if r.Questions[1].Answered || r.Questions[1].Weighted != 35 {
		t.Errorf("unexpected second question: %+v", r.Questions[1])
	}
}
