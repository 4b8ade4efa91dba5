package exam

import (
	"github.com/shopspring/decimal"

	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
)

// PassPercentage is the minimum percentage for a Pass.
const PassPercentage = 50

var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
	{50, "E"},
}

// GradeFor returns the letter grade of a percentage.
func GradeFor(percentage float64) string {
	for _, t := range gradeThresholds {
		if percentage >= t.min {
			return t.grade
		}
	}
	return "F"
}

// Outcome is the computed result of one attempt plus the counts used for
// remediation notes.
type Outcome struct {
	Earned     float64
	Percentage float64
	TotalScore int
	Grade      string
	PassStatus model.PassStatus
	Questions  int
	Correct    int
	Skipped    int
	Flagged    int
}

// Compile grades a set of answers. correct maps question IDs to the ID of
// their correct choice. Unanswered questions, answers to questions outside
// the exam and selections of choices that no longer exist earn nothing.
func Compile(totalMarks int, questions []marks.QuestionPoints, answers []model.Answer, correct map[int64]int64) Outcome {
	weights := marks.Weights(totalMarks, questions)
	byQuestion := make(map[int64]model.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	out := Outcome{Questions: len(questions)}
	earned := decimal.Zero
	for _, q := range questions {
		a, ok := byQuestion[q.QuestionID]
		if ok && a.IsFlagged {
			out.Flagged++
		}
		if !ok || a.SelectedChoiceID == nil {
			out.Skipped++
			continue
		}
		if cid, has := correct[q.QuestionID]; has && cid == *a.SelectedChoiceID {
			out.Correct++
			earned = earned.Add(decimal.NewFromFloat(weights[q.QuestionID]))
		}
	}

	out.Earned = earned.RoundBank(2).InexactFloat64()
	out.TotalScore = int(earned.RoundBank(0).IntPart())
	// Grade and pass status use the exact percentage; only the stored
	// value is rounded.
	pct := decimal.Zero
	if totalMarks > 0 {
		pct = earned.Div(decimal.NewFromInt(int64(totalMarks))).Mul(decimal.NewFromInt(100))
	}
	out.Percentage = pct.RoundBank(2).InexactFloat64()
	out.Grade = GradeFor(pct.InexactFloat64())
	out.PassStatus = model.Fail
	if pct.GreaterThanOrEqual(decimal.NewFromInt(PassPercentage)) {
		out.PassStatus = model.Pass
	}
	return out
}
