// Package marks converts raw question points into marks proportional to an
// exam's declared total.
//
// Everything here is pure: callers pass question-id/points pairs and get
// values back, so weights are always re-derived from current question points
// at grading time.
package marks

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hems/examhall/internal/model"
)

// QuestionPoints is the narrow view of a question the engine needs.
type QuestionPoints struct {
	QuestionID int64
	Marks      int
}

// PointsOf extracts id/points pairs from full questions.
func PointsOf(questions []model.Question) []QuestionPoints {
	out := make([]QuestionPoints, 0, len(questions))
	for _, q := range questions {
		out = append(out, QuestionPoints{QuestionID: q.ID, Marks: q.Marks})
	}
	return out
}

// RawTotal sums the raw points of all questions.
func RawTotal(questions []QuestionPoints) int {
	total := 0
	for _, q := range questions {
		total += q.Marks
	}
	return total
}

// Weights maps each question id to its weighted mark.
//
// When the raw points already sum to totalMarks they are returned unchanged.
// Otherwise each question gets marks/rawSum*totalMarks rounded to two
// decimals. A zero raw sum yields zero for every question.
func Weights(totalMarks int, questions []QuestionPoints) map[int64]float64 {
	weights := make(map[int64]float64, len(questions))
	if len(questions) == 0 {
		return weights
	}

	rawSum := RawTotal(questions)
	if rawSum == totalMarks {
		for _, q := range questions {
			weights[q.QuestionID] = float64(q.Marks)
		}
		return weights
	}
	if rawSum == 0 {
		for _, q := range questions {
			weights[q.QuestionID] = 0
		}
		return weights
	}

	total := decimal.NewFromInt(int64(totalMarks))
	sum := decimal.NewFromInt(int64(rawSum))
	for _, q := range questions {
		w := decimal.NewFromInt(int64(q.Marks)).Div(sum).Mul(total)
		weights[q.QuestionID] = w.RoundBank(2).InexactFloat64()
	}
	return weights
}

// Validation is the advisory outcome of checking an exam's raw total.
type Validation struct {
	HasQuestions    bool `json:"has_questions"`
	Balanced        bool `json:"balanced"`
	RequiresScaling bool `json:"requires_scaling"`
	TotalRawPoints  int  `json:"total_raw_points"`
	TotalExamMarks  int  `json:"total_exam_marks"`
}

// Validate reports whether the raw points match the declared total. It never
// blocks authoring or submission.
func Validate(totalMarks int, questions []QuestionPoints) Validation {
	raw := RawTotal(questions)
	v := Validation{
		HasQuestions:   len(questions) > 0,
		TotalRawPoints: raw,
		TotalExamMarks: totalMarks,
	}
	if !v.HasQuestions {
		return v
	}
	v.Balanced = raw == totalMarks
	v.RequiresScaling = !v.Balanced
	return v
}

// QuestionWeight is one row of a weighted summary.
type QuestionWeight struct {
	QuestionID    int64   `json:"question_id"`
	QuestionText  string  `json:"question_text"`
	RawPoints     int     `json:"raw_points"`
	WeightedMarks float64 `json:"weighted_marks"`
	QuestionOrder int     `json:"question_order"`
}

// Summary lists the weighted marks of every question of an exam.
type Summary struct {
	ExamID          int64            `json:"exam_id"`
	ExamTitle       string           `json:"exam_title"`
	TotalExamMarks  int              `json:"total_exam_marks"`
	TotalRawPoints  int              `json:"total_raw_points"`
	IsScalingNeeded bool             `json:"is_scaling_needed"`
	QuestionWeights []QuestionWeight `json:"question_weights"`
}

// Summarize builds the weighted summary ordered by display order.
func Summarize(exam model.Exam, questions []model.Question) Summary {
	points := PointsOf(questions)
	weights := Weights(exam.TotalMarks, points)
	raw := RawTotal(points)

	rows := make([]QuestionWeight, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, QuestionWeight{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			RawPoints:     q.Marks,
			WeightedMarks: weights[q.ID],
			QuestionOrder: q.Order,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].QuestionOrder < rows[j].QuestionOrder
	})

	return Summary{
		ExamID:          exam.ID,
		ExamTitle:       exam.Title,
		TotalExamMarks:  exam.TotalMarks,
		TotalRawPoints:  raw,
		IsScalingNeeded: len(questions) > 0 && raw != exam.TotalMarks,
		QuestionWeights: rows,
	}
}
