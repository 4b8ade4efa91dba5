package exam

import (
	"testing"

	"github.com/hems/examhall/internal/marks"
	"github.com/hems/examhall/internal/model"
)

func choice(id int64) *int64 { return &id }

func TestGradeFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A"}, {90, "A"}, {89.99, "B"}, {80, "B"}, {70, "C"},
		{60, "D"}, {50, "E"}, {49.99, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.pct); got != tt.want {
			t.Errorf("GradeFor(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestCompile(t *testing.T) {
	// Question n has correct choice 100+n and wrong choice 200+n.
	correct := map[int64]int64{1: 101, 2: 102, 3: 103}

	tests := []struct {
		name       string
		total      int
		qs         []marks.QuestionPoints
		answers    []model.Answer
		wantEarned float64
		wantPct    float64
		wantScore  int
		wantGrade  string
		wantPass   model.PassStatus
		wantSkip   int
	}{
		{
			name:  "scaled, first question correct only",
			total: 50,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 30}, {QuestionID: 2, Marks: 70}},
			answers: []model.Answer{
				{QuestionID: 1, SelectedChoiceID: choice(101)},
				{QuestionID: 2, SelectedChoiceID: choice(202)},
			},
			wantEarned: 15, wantPct: 30, wantScore: 15, wantGrade: "F", wantPass: model.Fail,
		},
		{
			name:  "balanced, all correct",
			total: 100,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 50}, {QuestionID: 2, Marks: 50}},
			answers: []model.Answer{
				{QuestionID: 1, SelectedChoiceID: choice(101)},
				{QuestionID: 2, SelectedChoiceID: choice(102)},
			},
			wantEarned: 100, wantPct: 100, wantScore: 100, wantGrade: "A", wantPass: model.Pass,
		},
		{
			name:       "no answers",
			total:      40,
			qs:         []marks.QuestionPoints{{QuestionID: 1, Marks: 10}, {QuestionID: 2, Marks: 10}, {QuestionID: 3, Marks: 20}},
			wantEarned: 0, wantPct: 0, wantScore: 0, wantGrade: "F", wantPass: model.Fail, wantSkip: 3,
		},
		{
			name:  "deleted choice earns nothing",
			total: 20,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 10}, {QuestionID: 2, Marks: 10}},
			answers: []model.Answer{
				{QuestionID: 1, SelectedChoiceID: choice(999)},
				{QuestionID: 2, SelectedChoiceID: choice(102)},
			},
			wantEarned: 10, wantPct: 50, wantScore: 10, wantGrade: "E", wantPass: model.Pass,
		},
		{
			name:  "zero total marks",
			total: 0,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 5}},
			answers: []model.Answer{
				{QuestionID: 1, SelectedChoiceID: choice(101)},
			},
			wantEarned: 0, wantPct: 0, wantScore: 0, wantGrade: "F", wantPass: model.Fail,
		},
		{
			name:  "answers outside the exam are ignored",
			total: 10,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 10}},
			answers: []model.Answer{
				{QuestionID: 3, SelectedChoiceID: choice(103)},
			},
			wantEarned: 0, wantPct: 0, wantScore: 0, wantGrade: "F", wantPass: model.Fail, wantSkip: 1,
		},
		{
			name:  "thirds round per question",
			total: 10,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 1}, {QuestionID: 2, Marks: 1}, {QuestionID: 3, Marks: 1}},
			answers: []model.Answer{
				{QuestionID: 1, SelectedChoiceID: choice(101)},
				{QuestionID: 2, SelectedChoiceID: choice(102)},
			},
			wantEarned: 6.66, wantPct: 66.6, wantScore: 7, wantGrade: "D", wantPass: model.Pass, wantSkip: 1,
		},
		{
			name:  "just under the pass mark stays failed",
			total: 300,
			qs:    []marks.QuestionPoints{{QuestionID: 1, Marks: 5000}, {QuestionID: 2, Marks: 5001}},
			answers: []model.Answer{
				{QuestionID: 1, SelectedChoiceID: choice(101)},
				{QuestionID: 2, SelectedChoiceID: choice(202)},
			},
			wantEarned: 149.99, wantPct: 50, wantScore: 150, wantGrade: "F", wantPass: model.Fail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.total, tt.qs, tt.answers, correct)
			if got.Earned != tt.wantEarned {
				t.Errorf("Earned = %v, want %v", got.Earned, tt.wantEarned)
			}
			if got.Percentage != tt.wantPct {
				t.Errorf("Percentage = %v, want %v", got.Percentage, tt.wantPct)
			}
			if got.TotalScore != tt.wantScore {
				t.Errorf("TotalScore = %d, want %d", got.TotalScore, tt.wantScore)
			}
			if got.Grade != tt.wantGrade {
				t.Errorf("Grade = %q, want %q", got.Grade, tt.wantGrade)
			}
			if got.PassStatus != tt.wantPass {
				t.Errorf("PassStatus = %q, want %q", got.PassStatus, tt.wantPass)
			}
			if got.Skipped != tt.wantSkip {
				t.Errorf("Skipped = %d, want %d", got.Skipped, tt.wantSkip)
			}
		})
	}
}

func TestCompileCountsFlagged(t *testing.T) {
	qs := []marks.QuestionPoints{{QuestionID: 1, Marks: 5}, {QuestionID: 2, Marks: 5}}
	answers := []model.Answer{
		{QuestionID: 1, IsFlagged: true},
		{QuestionID: 2, SelectedChoiceID: choice(102), IsFlagged: true},
	}
	got := Compile(10, qs, answers, map[int64]int64{1: 101, 2: 102})
	if got.Flagged != 2 || got.Skipped != 1 || got.Correct != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
}
