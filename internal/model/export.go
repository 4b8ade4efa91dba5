package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamID          int64           `json:"exam_id"`
	Title           string          `json:"title"`
	TotalMarks      int             `json:"total_marks"`
	DurationMinutes int             `json:"duration_minutes"`
	NumQuestions    int             `json:"num_questions"`
	ExportedAt      time.Time       `json:"exported_at"`
	Results         []StudentResult `json:"results"`
}

// StudentResult holds one student's attempt data for export.
type StudentResult struct {
	StudentID  int64            `json:"student_id"`
	FullName   string           `json:"full_name"`
	AttemptID  int64            `json:"attempt_id"`
	Status     AttemptStatus    `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Graded     bool             `json:"graded"`
	TotalScore int              `json:"total_score"`
	Percentage float64          `json:"percentage"`
	Grade      string           `json:"grade,omitempty"`
	PassStatus PassStatus       `json:"pass_status,omitempty"`
	Questions  []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID int64   `json:"question_id"`
	Text       string  `json:"text"`
	RawMarks   int     `json:"raw_marks"`
	Weighted   float64 `json:"weighted"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
	Flagged    bool    `json:"flagged"`
	ChoiceText string  `json:"choice_text,omitempty"`
}

// ExamImport is used for loading exam definitions from JSON.
type ExamImport struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DurationMinutes int              `json:"duration_minutes"`
	TotalMarks      int              `json:"total_marks"`
	Questions       []QuestionImport `json:"questions"`
}

// QuestionImport is one question of an imported exam.
type QuestionImport struct {
	Text    string         `json:"text"`
	Marks   int            `json:"marks"`
	Choices []ChoiceImport `json:"choices"`
}

// ChoiceImport is one choice of an imported question.
type ChoiceImport struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}
