package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
)

const examColumns = `id, title, description, duration_minutes, total_marks, status, results_published, created_by, created_at`

func scanExam(row interface{ Scan(...any) error }) (model.Exam, error) {
	var e model.Exam
	var created int64
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.TotalMarks,
		&e.Status, &e.ResultsPublished, &e.CreatedBy, &created)
	e.CreatedAt = fromUnix(created)
	return e, err
}

// CreateExam inserts a new exam. Status defaults to draft when empty.
func (s *Store) CreateExam(ctx context.Context, e model.Exam) (int64, error) {
	if e.Status == "" {
		e.Status = model.ExamDraft
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO exams (title, description, duration_minutes, total_marks, status, results_published, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.Title, e.Description, e.DurationMinutes, e.TotalMarks, e.Status, e.ResultsPublished,
		e.CreatedBy, unix(time.Now()),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert exam: %w", err)
	}
	slog.Info("created exam", "id", id, "title", e.Title)
	return id, nil
}

// UpdateExam changes the editable fields of an exam.
func (s *Store) UpdateExam(ctx context.Context, e model.Exam) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET title = $1, description = $2, duration_minutes = $3, total_marks = $4
		 WHERE id = $5`,
		e.Title, e.Description, e.DurationMinutes, e.TotalMarks, e.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(ctx context.Context, id int64) (*model.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examColumns+` FROM exams ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetExamStatus moves an exam from one status to another. It returns
// ErrConflict if the stored status is no longer from.
func (s *Store) SetExamStatus(ctx context.Context, id int64, from, to model.ExamStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return s.conflictOrMissing(ctx, `SELECT 1 FROM exams WHERE id = $1`, id)
	}
	return nil
}

// SetResultsPublished toggles whether students may review their answers.
func (s *Store) SetResultsPublished(ctx context.Context, id int64, published bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET results_published = $1 WHERE id = $2`, published, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// conflictOrMissing distinguishes a lost compare-and-set from a missing row.
func (s *Store) conflictOrMissing(ctx context.Context, query string, args ...any) error {
	var one int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		return notFound(err)
	}
	return ErrConflict
}

// CreateQuestion inserts a question and its choices. A zero Order places
// the question after the existing ones.
func (s *Store) CreateQuestion(ctx context.Context, q model.Question) (int64, error) {
	if q.Type == "" {
		q.Type = model.QuestionMultipleChoice
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if q.Order == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(question_order), 0) + 1 FROM questions WHERE exam_id = $1`, q.ExamID,
		).Scan(&q.Order); err != nil {
			return 0, err
		}
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO questions (exam_id, text, type, marks, question_order)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		q.ExamID, q.Text, q.Type, q.Marks, q.Order,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	for _, c := range q.Choices {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO choices (question_id, text, is_correct) VALUES ($1, $2, $3)`,
			id, c.Text, c.IsCorrect,
		); err != nil {
			return 0, fmt.Errorf("insert choice: %w", err)
		}
	}
	return id, tx.Commit()
}

// UpdateQuestion changes the text and raw points of a question.
func (s *Store) UpdateQuestion(ctx context.Context, q model.Question) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET text = $1, marks = $2 WHERE id = $3`, q.Text, q.Marks, q.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetQuestion returns a question with its choices.
func (s *Store) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	var q model.Question
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, text, type, marks, question_order FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.ExamID, &q.Text, &q.Type, &q.Marks, &q.Order)
	if err != nil {
		return nil, notFound(err)
	}
	choices, err := s.listChoices(ctx, `WHERE c.question_id = $1`, id)
	if err != nil {
		return nil, err
	}
	q.Choices = choices[q.ID]
	return &q, nil
}

// ListQuestions returns the questions of an exam in display order, each
// with its choices.
func (s *Store) ListQuestions(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, text, type, marks, question_order FROM questions
		 WHERE exam_id = $1 ORDER BY question_order, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Type, &q.Marks, &q.Order); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	choices, err := s.listChoices(ctx,
		`JOIN questions q ON q.id = c.question_id WHERE q.exam_id = $1`, examID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Choices = choices[out[i].ID]
	}
	return out, nil
}

func (s *Store) listChoices(ctx context.Context, where string, arg int64) (map[int64][]model.Choice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.question_id, c.text, c.is_correct FROM choices c `+where+` ORDER BY c.id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]model.Choice)
	for rows.Next() {
		var c model.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect); err != nil {
			return nil, err
		}
		out[c.QuestionID] = append(out[c.QuestionID], c)
	}
	return out, rows.Err()
}

// DeleteQuestion removes a question and its choices. Questions referenced
// by recorded answers cannot be deleted.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CountAnswersForQuestion returns how many recorded answers reference a
// question.
func (s *Store) CountAnswersForQuestion(ctx context.Context, questionID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exam_answers WHERE question_id = $1`, questionID).Scan(&n)
	return n, err
}

// QuestionPoints returns the id/raw-points pairs of an exam's questions.
func (s *Store) QuestionPoints(ctx context.Context, examID int64) ([]marks.QuestionPoints, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, marks FROM questions WHERE exam_id = $1 ORDER BY question_order, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []marks.QuestionPoints
	for rows.Next() {
		var qp marks.QuestionPoints
		if err := rows.Scan(&qp.QuestionID, &qp.Marks); err != nil {
			return nil, err
		}
		out = append(out, qp)
	}
	return out, rows.Err()
}

// CorrectChoices maps each question of an exam to its correct choice ID.
// Questions without a correct choice are absent.
func (s *Store) CorrectChoices(ctx context.Context, examID int64) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.question_id, c.id FROM choices c
		 JOIN questions q ON q.id = c.question_id
		 WHERE q.exam_id = $1 AND c.is_correct = TRUE`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]int64)
	for rows.Next() {
		var qid, cid int64
		if err := rows.Scan(&qid, &cid); err != nil {
			return nil, err
		}
		out[qid] = cid
	}
	return out, rows.Err()
}

// ChoiceQuestion returns the question a choice belongs to.
func (s *Store) ChoiceQuestion(ctx context.Context, choiceID int64) (int64, error) {
	var qid int64
	err := s.db.QueryRowContext(ctx, `SELECT question_id FROM choices WHERE id = $1`, choiceID).Scan(&qid)
	if err != nil {
		return 0, notFound(err)
	}
	return qid, nil
}

// QuestionExam returns the exam a question belongs to.
func (s *Store) QuestionExam(ctx context.Context, questionID int64) (int64, error) {
	var eid int64
	err := s.db.QueryRowContext(ctx, `SELECT exam_id FROM questions WHERE id = $1`, questionID).Scan(&eid)
	if err != nil {
		return 0, notFound(err)
	}
	return eid, nil
}
