package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
)

// ExportExamResults builds export-ready results for every attempt of an
// exam. Weighted marks are derived from the current question points.
func (s *Store) ExportExamResults(ctx context.Context, examID int64) (*model.ExamExport, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam %d: %w", examID, err)
	}
	questions, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	attempts, err := s.ListAttemptsByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	results, err := s.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	weights := marks.Weights(exam.TotalMarks, marks.PointsOf(questions))
	choiceText := make(map[int64]string)
	correct := make(map[int64]int64)
	for _, q := range questions {
		for _, c := range q.Choices {
			choiceText[c.ID] = c.Text
			if c.IsCorrect {
				correct[q.ID] = c.ID
			}
		}
	}

	out := &model.ExamExport{
		ExamID:          exam.ID,
		Title:           exam.Title,
		TotalMarks:      exam.TotalMarks,
		DurationMinutes: exam.DurationMinutes,
		NumQuestions:    len(questions),
		ExportedAt:      time.Now().UTC(),
	}

	for _, a := range attempts {
		student, err := s.GetStudent(ctx, a.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get student %d: %w", a.StudentID, err)
		}
		answers, err := s.ListAnswers(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("list answers for attempt %d: %w", a.ID, err)
		}
		byQuestion := make(map[int64]model.Answer, len(answers))
		for _, ans := range answers {
			byQuestion[ans.QuestionID] = ans
		}

		sr := model.StudentResult{
			StudentID: student.ID,
			FullName:  student.FullName,
			AttemptID: a.ID,
			Status:    a.Status,
			StartedAt: a.StartTime,
			EndedAt:   a.EndTime,
		}
		if r, ok := results[a.ID]; ok {
			sr.Graded = true
			sr.TotalScore = r.TotalScore
			sr.Percentage = r.Percentage
			sr.Grade = r.Grade
			sr.PassStatus = r.PassStatus
		}
		for _, q := range questions {
			qr := model.QuestionResult{
				QuestionID: q.ID,
				Text:       q.Text,
				RawMarks:   q.Marks,
				Weighted:   weights[q.ID],
			}
			if ans, ok := byQuestion[q.ID]; ok {
				qr.Flagged = ans.IsFlagged
				if ans.SelectedChoiceID != nil {
					qr.Answered = true
					qr.ChoiceText = choiceText[*ans.SelectedChoiceID]
					cid, ok := correct[q.ID]
					qr.Correct = ok && cid == *ans.SelectedChoiceID
				}
			}
			sr.Questions = append(sr.Questions, qr)
		}
		out.Results = append(out.Results, sr)
	}
	return out, nil
}
