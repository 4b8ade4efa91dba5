package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeGrader struct {
	n   int
	err error
}

func (f *fakeGrader) GradePending(context.Context) (int, error) { return f.n, f.err }

type fakeReaper struct{ called bool }

func (f *fakeReaper) CleanupExpiredSessions(context.Context, time.Time) (int64, error) {
	f.called = true
	return 2, nil
}

func newTestScheduler(buf *bytes.Buffer) *Scheduler {
	log := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(log, time.Second)
}

func TestAdd(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(&buf)

	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"@every 1m", false},
		{"*/5 * * * *", false},
		{"every minute", true},
		{"", true},
	}
	for _, tt := range tests {
		err := s.Add(tt.spec, "noop", func(context.Context) error { return nil })
		if (err != nil) != tt.wantErr {
			t.Errorf("Add(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
		}
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 jobs, got %d", s.Len())
	}
}

func TestRunLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(&buf)

	s.run("grade", GradePending(&fakeGrader{n: 1, err: errors.New("db locked")}))
	if !strings.Contains(buf.String(), "job failed") || !strings.Contains(buf.String(), "db locked") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}

	buf.Reset()
	s.run("grade", GradePending(&fakeGrader{}))
	if strings.Contains(buf.String(), "job failed") {
		t.Errorf("unexpected failure log: %q", buf.String())
	}
}

func TestRunHasDeadline(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(&buf)
	var hasDeadline bool
	s.run("check", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	if !hasDeadline {
		t.Error("job context should carry the timeout")
	}
}

func TestPurgeSessions(t *testing.T) {
	r := &fakeReaper{}
	if err := PurgeSessions(r)(context.Background()); err != nil {
		t.Fatalf("PurgeSessions: %v", err)
	}
	if !r.called {
		t.Error("reaper not called")
	}
}

func TestStartStop(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(&buf)
	s.Start()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
