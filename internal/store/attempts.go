package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hems/examhall/internal/model"
)

const attemptColumns = `a.id, a.exam_id, a.student_id, a.start_time, a.end_time, a.status, a.is_blocked`

func scanAttempt(row interface{ Scan(...any) error }, extra ...any) (model.Attempt, error) {
	var a model.Attempt
	var start int64
	var end sql.NullInt64
	dest := append([]any{&a.ID, &a.ExamID, &a.StudentID, &start, &end, &a.Status, &a.IsBlocked}, extra...)
	err := row.Scan(dest...)
	a.StartTime = fromUnix(start)
	a.EndTime = fromNullUnix(end)
	return a, err
}

func (s *Store) queryAttempts(ctx context.Context, query string, args ...any) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, id int64) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// OpenAttempt returns the attempt of a student for an exam that is not yet
// submitted.
func (s *Store) OpenAttempt(ctx context.Context, examID, studentID int64) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 WHERE a.exam_id = $1 AND a.student_id = $2 AND a.status <> 'submitted'
		 ORDER BY a.id DESC LIMIT 1`, examID, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// LatestSubmittedAttempt returns the most recent submitted attempt of a
// student for an exam.
func (s *Store) LatestSubmittedAttempt(ctx context.Context, examID, studentID int64) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 WHERE a.exam_id = $1 AND a.student_id = $2 AND a.status = 'submitted'
		 ORDER BY a.id DESC LIMIT 1`, examID, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListAttemptsByExam returns all attempts of an exam, oldest first.
func (s *Store) ListAttemptsByExam(ctx context.Context, examID int64) ([]model.Attempt, error) {
	return s.queryAttempts(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.exam_id = $1 ORDER BY a.id`, examID)
}

// ListAttemptsByStudent returns all attempts of a student, newest first.
func (s *Store) ListAttemptsByStudent(ctx context.Context, studentID int64) ([]model.Attempt, error) {
	return s.queryAttempts(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.student_id = $1 ORDER BY a.id DESC`, studentID)
}

// ListUngradedAttempts returns submitted attempts that have no result.
func (s *Store) ListUngradedAttempts(ctx context.Context) ([]model.Attempt, error) {
	return s.queryAttempts(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 LEFT JOIN results r ON r.attempt_id = a.id
		 WHERE a.status = 'submitted' AND r.id IS NULL ORDER BY a.id`)
}

// TransitionAttempt moves an attempt from one status to another. The
// blocked flag follows the target status and end_time is set when end is
// non-nil. It returns ErrConflict if the stored status is no longer from.
func (s *Store) TransitionAttempt(ctx context.Context, id int64, from, to model.AttemptStatus, end *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_attempts SET status = $1, is_blocked = $2, end_time = COALESCE($3, end_time)
		 WHERE id = $4 AND status = $5`,
		to, to == model.AttemptBlocked, nullUnix(end), id, from,
	)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if err := expectOne(res); err != nil {
		return s.conflictOrMissing(ctx, `SELECT 1 FROM exam_attempts WHERE id = $1`, id)
	}
	return nil
}

// UpsertAnswer records the answer to one question of an in-progress
// attempt, replacing any earlier answer to the same question. It returns
// ErrConflict if the attempt is not in progress.
func (s *Store) UpsertAnswer(ctx context.Context, a model.Answer) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_answers (attempt_id, question_id, selected_choice_id, is_flagged, updated_at)
		 SELECT CAST($1 AS BIGINT), CAST($2 AS BIGINT), CAST($3 AS BIGINT), CAST($4 AS BOOLEAN), CAST($5 AS BIGINT)
		 WHERE EXISTS (SELECT 1 FROM exam_attempts WHERE id = $1 AND status = 'in_progress')
		 ON CONFLICT (attempt_id, question_id) DO UPDATE SET
		   selected_choice_id = EXCLUDED.selected_choice_id,
		   is_flagged = EXCLUDED.is_flagged,
		   updated_at = EXCLUDED.updated_at`,
		a.AttemptID, a.QuestionID, nullID(a.SelectedChoiceID), a.IsFlagged, unix(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	if err := expectOne(res); err != nil {
		return s.conflictOrMissing(ctx, `SELECT 1 FROM exam_attempts WHERE id = $1`, a.AttemptID)
	}
	return nil
}

// ListAnswers returns the answers of an attempt.
func (s *Store) ListAnswers(ctx context.Context, attemptID int64) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, question_id, selected_choice_id, is_flagged, updated_at
		 FROM exam_answers WHERE attempt_id = $1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Answer
	for rows.Next() {
		var a model.Answer
		var choice sql.NullInt64
		var updated int64
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &choice, &a.IsFlagged, &updated); err != nil {
			return nil, err
		}
		a.SelectedChoiceID = fromNullID(choice)
		a.UpdatedAt = fromUnix(updated)
		out = append(out, a)
	}
	return out, rows.Err()
}
