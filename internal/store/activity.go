package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hems/examhall/internal/model"
)

// assignedUsers selects the user IDs of students holding a password for the
// exam bound to $1.
const assignedUsers = `SELECT st.user_id FROM students st
	JOIN exam_passwords p ON p.student_id = st.id WHERE p.exam_id = $1`

// AppendActivity inserts an activity log entry. A zero timestamp means now.
func (s *Store) AppendActivity(ctx context.Context, a model.ActivityLog) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, kind, action, ts, ip_address, device_info)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.UserID, a.Kind, a.Action, unix(a.Timestamp), a.IPAddress, a.DeviceInfo,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListAssignedStudents returns the students holding at least one password
// for an exam, ordered by name.
func (s *Store) ListAssignedStudents(ctx context.Context, examID int64) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE id IN (SELECT student_id FROM exam_passwords WHERE exam_id = $1)
		 ORDER BY full_name, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// RecentLogins returns the assigned users of an exam with a login entry at
// or after since.
func (s *Store) RecentLogins(ctx context.Context, examID int64, since time.Time) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM activity_logs
		 WHERE user_id IN (`+assignedUsers+`) AND kind = $2 AND ts >= $3`,
		examID, model.ActivityLogin, unix(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// LatestHeartbeats maps each assigned user of an exam to their most recent
// heartbeat entry. Users that never sent one are absent.
func (s *Store) LatestHeartbeats(ctx context.Context, examID int64) (map[int64]model.ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.user_id, l.kind, l.action, l.ts, l.ip_address, l.device_info
		 FROM activity_logs l
		 JOIN (SELECT user_id, MAX(id) AS id FROM activity_logs
		       WHERE user_id IN (`+assignedUsers+`) AND kind = $2
		       GROUP BY user_id) m ON m.id = l.id`,
		examID, model.ActivityHeartbeat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]model.ActivityLog)
	for rows.Next() {
		var a model.ActivityLog
		var ts int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.Action, &ts, &a.IPAddress, &a.DeviceInfo); err != nil {
			return nil, err
		}
		a.Timestamp = fromUnix(ts)
		out[a.UserID] = a
	}
	return out, rows.Err()
}

// ActivityFeed returns up to limit login and exam entries of an exam's
// assigned users at or after since, newest first.
func (s *Store) ActivityFeed(ctx context.Context, examID int64, since time.Time, limit int) ([]model.FeedEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.username, l.kind, l.action, l.ts FROM activity_logs l
		 JOIN users u ON u.id = l.user_id
		 WHERE l.user_id IN (`+assignedUsers+`) AND l.kind IN ($2, $3) AND l.ts >= $4
		 ORDER BY l.ts DESC, l.id DESC LIMIT $5`,
		examID, model.ActivityLogin, model.ActivityExam, unix(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FeedEntry
	for rows.Next() {
		var e model.FeedEntry
		var ts int64
		if err := rows.Scan(&e.Username, &e.Kind, &e.Action, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = fromUnix(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
