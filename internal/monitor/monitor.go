// Package monitor builds the live snapshot a coordinator polls while an
// exam is running.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/store"
)

const (
	// NoSignal is shown for students that never sent a heartbeat.
	NoSignal  = "No Signal"
	clockFmt  = "03:04 PM"
	emptyTime = "-"
)

// Aggregator reads attempt and activity state for the monitor page.
type Aggregator struct {
	store           *store.Store
	LoginWindow     time.Duration
	HeartbeatWindow time.Duration
	FeedSize        int
	Location        *time.Location
	Now             func() time.Time
}

// New returns an Aggregator with a one hour login window, a one minute
// heartbeat window and a feed of ten entries.
func New(st *store.Store) *Aggregator {
	return &Aggregator{
		store:           st,
		LoginWindow:     time.Hour,
		HeartbeatWindow: time.Minute,
		FeedSize:        10,
		Location:        time.Local,
		Now:             time.Now,
	}
}

// StudentActivity is one row of the monitor table.
type StudentActivity struct {
	StudentID      int64  `json:"studentId"`
	FullName       string `json:"fullName"`
	IsLoggedIn     bool   `json:"isLoggedIn"`
	Status         string `json:"status"`
	LatestActivity string `json:"latestActivity"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	DurationUsed   string `json:"durationUsed"`
	AttemptID      *int64 `json:"attemptId"`
	IsBlocked      bool   `json:"isBlocked"`
}

// Snapshot is the JSON document returned to the monitor page.
type Snapshot struct {
	ExamID            int64             `json:"examId"`
	TotalAssigned     int               `json:"totalAssigned"`
	LoggedInCount     int               `json:"loggedInCount"`
	StartedCount      int               `json:"startedCount"`
	InProgressCount   int               `json:"inProgressCount"`
	SubmittedCount    int               `json:"submittedCount"`
	BlockedCount      int               `json:"blockedCount"`
	NotStartedCount   int               `json:"notStartedCount"`
	StudentActivities []StudentActivity `json:"studentActivities"`
	LiveFeed          []string          `json:"liveFeed"`
	GeneratedAt       time.Time         `json:"generatedAt"`
}

// Snapshot reads the current state of an exam. Students without an attempt
// or without heartbeats are reported, not treated as errors.
func (a *Aggregator) Snapshot(ctx context.Context, examID int64) (*Snapshot, error) {
	if _, err := a.store.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	now := a.Now()

	var (
		students []model.Student
		attempts []model.Attempt
		logins   map[int64]bool
		beats    map[int64]model.ActivityLog
		feed     []model.FeedEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = a.store.ListAssignedStudents(gctx, examID)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = a.store.ListAttemptsByExam(gctx, examID)
		return err
	})
	g.Go(func() (err error) {
		logins, err = a.store.RecentLogins(gctx, examID, now.Add(-a.LoginWindow))
		return err
	})
	g.Go(func() (err error) {
		beats, err = a.store.LatestHeartbeats(gctx, examID)
		return err
	})
	g.Go(func() (err error) {
		feed, err = a.store.ActivityFeed(gctx, examID, now.Add(-a.LoginWindow), a.FeedSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monitor exam %d: %w", examID, err)
	}

	// Attempts are oldest first, so the last one per student wins.
	latest := make(map[int64]model.Attempt, len(attempts))
	for _, at := range attempts {
		latest[at.StudentID] = at
	}

	snap := &Snapshot{
		ExamID:            examID,
		TotalAssigned:     len(students),
		StartedCount:      len(attempts),
		StudentActivities: make([]StudentActivity, 0, len(students)),
		LiveFeed:          make([]string, 0, len(feed)),
		GeneratedAt:       now.UTC(),
	}
	for _, at := range attempts {
		switch at.Status {
		case model.AttemptInProgress:
			snap.InProgressCount++
		case model.AttemptSubmitted:
			snap.SubmittedCount++
		case model.AttemptBlocked:
			snap.BlockedCount++
		}
	}

	for _, st := range students {
		row := StudentActivity{
			StudentID:      st.ID,
			FullName:       st.FullName,
			Status:         model.NotStartedLabel,
			LatestActivity: NoSignal,
			StartTime:      emptyTime,
			EndTime:        emptyTime,
			DurationUsed:   emptyTime,
		}
		hb, hasBeat := beats[st.UserID]
		if hasBeat {
			row.LatestActivity = strings.TrimPrefix(hb.Action, model.HeartbeatPrefix)
		}
		row.IsLoggedIn = logins[st.UserID] || (hasBeat && !hb.Timestamp.Before(now.Add(-a.HeartbeatWindow)))
		if row.IsLoggedIn {
			snap.LoggedInCount++
		}

		if at, ok := latest[st.ID]; ok {
			id := at.ID
			row.AttemptID = &id
			row.Status = at.Status.Label()
			row.IsBlocked = at.IsBlocked
			row.StartTime = at.StartTime.In(a.Location).Format(clockFmt)
			end := now
			if at.EndTime != nil {
				end = *at.EndTime
				row.EndTime = at.EndTime.In(a.Location).Format(clockFmt)
			}
			row.DurationUsed = clock(end.Sub(at.StartTime))
		} else {
			snap.NotStartedCount++
		}
		snap.StudentActivities = append(snap.StudentActivities, row)
	}

	for _, e := range feed {
		snap.LiveFeed = append(snap.LiveFeed,
			fmt.Sprintf("%s %s - %s", e.Username, e.Action, e.Timestamp.In(a.Location).Format(clockFmt)))
	}
	return snap, nil
}

// clock formats a duration as hh:mm:ss.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}
