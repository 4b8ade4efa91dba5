package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hems/examhall/internal/model"
)

const passwordColumns = `p.id, p.exam_id, p.student_id, p.secret_hash, p.is_used, p.expires_at, p.created_at`

func scanPassword(row interface{ Scan(...any) error }, extra ...any) (model.ExamPassword, error) {
	var p model.ExamPassword
	var expires, created int64
	dest := append([]any{&p.ID, &p.ExamID, &p.StudentID, &p.SecretHash, &p.IsUsed, &expires, &created}, extra...)
	err := row.Scan(dest...)
	p.ExpiresAt = fromUnix(expires)
	p.CreatedAt = fromUnix(created)
	return p, err
}

// InsertPassword stores a new unused password hash for a student.
func (s *Store) InsertPassword(ctx context.Context, examID, studentID int64, hash string, expiresAt time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO exam_passwords (exam_id, student_id, secret_hash, is_used, expires_at, created_at)
		 VALUES ($1, $2, $3, FALSE, $4, $5) RETURNING id`,
		examID, studentID, hash, unix(expiresAt), unix(time.Now()),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert password: %w", err)
	}
	return id, nil
}

// ReplacePasswordSecret swaps the hash and expiry of a password that is
// still unused. It returns ErrConflict if the password was redeemed.
func (s *Store) ReplacePasswordSecret(ctx context.Context, id int64, hash string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_passwords SET secret_hash = $1, expires_at = $2, created_at = $3
		 WHERE id = $4 AND is_used = FALSE`,
		hash, unix(expiresAt), unix(time.Now()), id,
	)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return s.conflictOrMissing(ctx, `SELECT 1 FROM exam_passwords WHERE id = $1`, id)
	}
	return nil
}

// DeleteUnusedPasswords removes the unused passwords of a student for an
// exam. It returns ErrNotFound if the student holds no password and
// ErrConflict if every password they hold was already redeemed.
func (s *Store) DeleteUnusedPasswords(ctx context.Context, examID, studentID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM exam_passwords WHERE exam_id = $1 AND student_id = $2 AND is_used = FALSE`,
		examID, studentID,
	)
	if err != nil {
		return fmt.Errorf("delete passwords: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.conflictOrMissing(ctx,
		`SELECT 1 FROM exam_passwords WHERE exam_id = $1 AND student_id = $2`, examID, studentID)
}

// GetPassword returns a password by ID.
func (s *Store) GetPassword(ctx context.Context, id int64) (*model.ExamPassword, error) {
	p, err := scanPassword(s.db.QueryRowContext(ctx,
		`SELECT `+passwordColumns+` FROM exam_passwords p WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// LatestPassword returns the most recently created password of a student
// for an exam.
func (s *Store) LatestPassword(ctx context.Context, examID, studentID int64) (*model.ExamPassword, error) {
	p, err := scanPassword(s.db.QueryRowContext(ctx,
		`SELECT `+passwordColumns+` FROM exam_passwords p
		 WHERE p.exam_id = $1 AND p.student_id = $2
		 ORDER BY p.is_used ASC, p.id DESC LIMIT 1`, examID, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// RedeemablePassword returns the unused, unexpired password of a student for
// an exam.
func (s *Store) RedeemablePassword(ctx context.Context, examID, studentID int64, now time.Time) (*model.ExamPassword, error) {
	p, err := scanPassword(s.db.QueryRowContext(ctx,
		`SELECT `+passwordColumns+` FROM exam_passwords p
		 WHERE p.exam_id = $1 AND p.student_id = $2 AND p.is_used = FALSE AND p.expires_at > $3
		 ORDER BY p.id DESC LIMIT 1`, examID, studentID, unix(now)))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPasswords returns every password issued for an exam with the student
// name, ordered by name.
func (s *Store) ListPasswords(ctx context.Context, examID int64) ([]model.PasswordAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+passwordColumns+`, st.full_name FROM exam_passwords p
		 JOIN students st ON st.id = p.student_id
		 WHERE p.exam_id = $1 ORDER BY st.full_name, p.id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PasswordAssignment
	for rows.Next() {
		var pa model.PasswordAssignment
		pa.ExamPassword, err = scanPassword(rows, &pa.StudentName)
		if err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

// RedeemPassword consumes a password and opens an attempt in one
// transaction. The password is marked used only if it is still unused and
// unexpired at now, so concurrent callers cannot both win: the loser gets
// ErrConflict. ErrOpenAttempt is returned if the student already has an
// attempt that is not submitted.
func (s *Store) RedeemPassword(ctx context.Context, passwordID, examID, studentID int64, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE exam_passwords SET is_used = TRUE
		 WHERE id = $1 AND exam_id = $2 AND student_id = $3 AND is_used = FALSE AND expires_at > $4`,
		passwordID, examID, studentID, unix(now),
	)
	if err != nil {
		return 0, fmt.Errorf("consume password: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n != 1 {
		return 0, ErrConflict
	}

	var open int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status <> 'submitted'`, examID, studentID,
	).Scan(&open); err != nil {
		return 0, err
	}
	if open > 0 {
		return 0, ErrOpenAttempt
	}

	var attemptID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO exam_attempts (exam_id, student_id, start_time, status, is_blocked)
		 VALUES ($1, $2, $3, $4, FALSE) RETURNING id`,
		examID, studentID, unix(now), model.AttemptInProgress,
	).Scan(&attemptID); err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("password redeemed", "exam_id", examID, "student_id", studentID, "attempt_id", attemptID)
	return attemptID, nil
}
