package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Grader grades submitted attempts that have no result yet.
type Grader interface {
	GradePending(ctx context.Context) (int, error)
}

// SessionReaper removes expired login sessions.
type SessionReaper interface {
	CleanupExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// GradePending retries grading of attempts a failed submit left ungraded.
func GradePending(g Grader) Job {
	return func(ctx context.Context) error {
		n, err := g.GradePending(ctx)
		if n > 0 {
			slog.Info("graded pending attempts", "count", n)
		}
		return err
	}
}

// PurgeSessions deletes login sessions past their expiry.
func PurgeSessions(r SessionReaper) Job {
	return func(ctx context.Context) error {
		n, err := r.CleanupExpiredSessions(ctx, time.Now())
		if n > 0 {
			slog.Info("purged expired sessions", "count", n)
		}
		return err
	}
}
