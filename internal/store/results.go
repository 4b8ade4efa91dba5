package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hems/examhall/internal/model"
)

const resultColumns = `r.id, r.attempt_id, r.total_score, r.earned, r.percentage, r.grade, r.pass_status, r.published_at`

func scanResult(row interface{ Scan(...any) error }) (model.Result, error) {
	var r model.Result
	var published int64
	err := row.Scan(&r.ID, &r.AttemptID, &r.TotalScore, &r.Earned, &r.Percentage, &r.Grade, &r.PassStatus, &published)
	r.PublishedAt = fromUnix(published)
	return r, err
}

// UpsertResult stores the result of an attempt, overwriting any earlier
// result of the same attempt in place.
func (s *Store) UpsertResult(ctx context.Context, r model.Result) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO results (attempt_id, total_score, earned, percentage, grade, pass_status, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (attempt_id) DO UPDATE SET
		   total_score = EXCLUDED.total_score,
		   earned = EXCLUDED.earned,
		   percentage = EXCLUDED.percentage,
		   grade = EXCLUDED.grade,
		   pass_status = EXCLUDED.pass_status,
		   published_at = EXCLUDED.published_at
		 RETURNING id`,
		r.AttemptID, r.TotalScore, r.Earned, r.Percentage, r.Grade, r.PassStatus, unix(r.PublishedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert result: %w", err)
	}
	slog.Info("stored result", "id", id, "attempt_id", r.AttemptID, "grade", r.Grade)
	return id, nil
}

// GetResultByAttempt returns the result of an attempt.
func (s *Store) GetResultByAttempt(ctx context.Context, attemptID int64) (*model.Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results r WHERE r.attempt_id = $1`, attemptID))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ListResultsByExam maps attempt IDs of an exam to their results.
func (s *Store) ListResultsByExam(ctx context.Context, examID int64) (map[int64]model.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results r
		 JOIN exam_attempts a ON a.id = r.attempt_id
		 WHERE a.exam_id = $1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]model.Result)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out[r.AttemptID] = r
	}
	return out, rows.Err()
}
