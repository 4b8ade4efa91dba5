package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/store"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	agg    *Aggregator
	examID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(ctx, store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	coordID, err := st.CreateUser(ctx, model.User{Username: "coord", PasswordHash: "x", Role: model.UserRoleCoordinator, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	examID, err := st.CreateExam(ctx, model.Exam{Title: "Algorithms", DurationMinutes: 60, TotalMarks: 10, CreatedBy: coordID})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	agg := New(st)
	agg.Location = time.UTC
	agg.Now = func() time.Time { return now }
	return &fixture{store: st, agg: agg, examID: examID}
}

// assign creates a student holding a password for the exam and returns the
// student and the password ID.
func (f *fixture) assign(t *testing.T, username, fullName string) (model.Student, int64) {
	t.Helper()
	ctx := context.Background()
	uid, err := f.store.CreateUser(ctx, model.User{Username: username, PasswordHash: "x", Role: model.UserRoleStudent, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	st := model.Student{UserID: uid, FullName: fullName}
	st.ID, err = f.store.CreateStudent(ctx, st)
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	pid, err := f.store.InsertPassword(ctx, f.examID, st.ID, "hash", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("InsertPassword: %v", err)
	}
	return st, pid
}

func (f *fixture) log(t *testing.T, userID int64, kind model.ActivityKind, action string, at time.Time) {
	t.Helper()
	err := f.store.AppendActivity(context.Background(), model.ActivityLog{UserID: userID, Kind: kind, Action: action, Timestamp: at})
	if err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, alicePwd := f.assign(t, "alice", "Alice Adams")
	bob, bobPwd := f.assign(t, "bob", "Bob Brown")
	carol, _ := f.assign(t, "carol", "Carol Clark")
	dave, _ := f.assign(t, "dave", "Dave Dunn")

	aliceAttempt, err := f.store.RedeemPassword(ctx, alicePwd, f.examID, alice.ID, now.Add(-12*time.Minute-30*time.Second))
	if err != nil {
		t.Fatalf("RedeemPassword: %v", err)
	}
	bobAttempt, err := f.store.RedeemPassword(ctx, bobPwd, f.examID, bob.ID, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("RedeemPassword: %v", err)
	}
	end := now.Add(-10 * time.Minute)
	if err := f.store.TransitionAttempt(ctx, bobAttempt, model.AttemptInProgress, model.AttemptSubmitted, &end); err != nil {
		t.Fatalf("TransitionAttempt: %v", err)
	}

	f.log(t, alice.UserID, model.ActivityHeartbeat, model.HeartbeatPrefix+"Question 2", now.Add(-30*time.Second))
	f.log(t, bob.UserID, model.ActivityLogin, "Logged In", now.Add(-40*time.Minute))
	f.log(t, carol.UserID, model.ActivityLogin, "Logged In", now.Add(-2*time.Hour))
	f.log(t, dave.UserID, model.ActivityHeartbeat, model.HeartbeatPrefix+"Question 3", now.Add(-5*time.Minute))

	snap, err := f.agg.Snapshot(ctx, f.examID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.TotalAssigned != 4 || snap.LoggedInCount != 2 || snap.StartedCount != 2 ||
		snap.InProgressCount != 1 || snap.SubmittedCount != 1 || snap.NotStartedCount != 2 {
		t.Errorf("unexpected aggregates: %+v", snap)
	}

	want := map[string]StudentActivity{
		"Alice Adams": {IsLoggedIn: true, Status: "In Progress", LatestActivity: "Question 2",
			StartTime: "08:47 AM", EndTime: "-", DurationUsed: "00:12:30", AttemptID: &aliceAttempt},
		"Bob Brown": {IsLoggedIn: true, Status: "Submitted", LatestActivity: NoSignal,
			StartTime: "08:30 AM", EndTime: "08:50 AM", DurationUsed: "00:20:00", AttemptID: &bobAttempt},
		"Carol Clark": {IsLoggedIn: false, Status: model.NotStartedLabel, LatestActivity: NoSignal,
			StartTime: "-", EndTime: "-", DurationUsed: "-"},
		"Dave Dunn": {IsLoggedIn: false, Status: model.NotStartedLabel, LatestActivity: "Question 3",
			StartTime: "-", EndTime: "-", DurationUsed: "-"},
	}
	if len(snap.StudentActivities) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(snap.StudentActivities))
	}
	for _, got := range snap.StudentActivities {
		w, ok := want[got.FullName]
		if !ok {
			t.Errorf("unexpected row %q", got.FullName)
			continue
		}
		if got.IsLoggedIn != w.IsLoggedIn || got.Status != w.Status || got.LatestActivity != w.LatestActivity ||
			got.StartTime != w.StartTime || got.EndTime != w.EndTime || got.DurationUsed != w.DurationUsed {
			t.Errorf("%s: got %+v, want %+v", got.FullName, got, w)
		}
		if (got.AttemptID == nil) != (w.AttemptID == nil) || (got.AttemptID != nil && *got.AttemptID != *w.AttemptID) {
			t.Errorf("%s: attempt id %v, want %v", got.FullName, got.AttemptID, w.AttemptID)
		}
	}

	if len(snap.LiveFeed) != 1 || snap.LiveFeed[0] != "bob Logged In - 08:20 AM" {
		t.Errorf("unexpected feed: %q", snap.LiveFeed)
	}
}

func TestSnapshotFeedIsBounded(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.assign(t, "alice", "Alice Adams")
	for i := 0; i < 15; i++ {
		f.log(t, alice.UserID, model.ActivityExam, fmt.Sprintf("Action %d", i), now.Add(time.Duration(i-30)*time.Minute))
	}
	f.log(t, alice.UserID, model.ActivityHeartbeat, model.HeartbeatPrefix+"Question 1", now)

	snap, err := f.agg.Snapshot(context.Background(), f.examID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.LiveFeed) != 10 {
		t.Fatalf("expected 10 feed entries, got %d", len(snap.LiveFeed))
	}
	if snap.LiveFeed[0] != "alice Action 14 - 08:44 AM" {
		t.Errorf("expected newest entry first, got %q", snap.LiveFeed[0])
	}
}

func TestSnapshotWithoutStudents(t *testing.T) {
	f := newFixture(t)
	snap, err := f.agg.Snapshot(context.Background(), f.examID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TotalAssigned != 0 || len(snap.StudentActivities) != 0 || len(snap.LiveFeed) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}

	if _, err := f.agg.Snapshot(context.Background(), 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-time.Second, "00:00:00"},
		{90 * time.Second, "00:01:30"},
		{2*time.Hour + 5*time.Minute + 7*time.Second, "02:05:07"},
	}
	for _, tt := range tests {
		if got := clock(tt.d); got != tt.want {
			t.Errorf("clock(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
