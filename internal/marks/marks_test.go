package marks

import (
	"math"
	"testing"

	"github.com/hems/examhall/internal/model"
)

func TestWeightsBalancedKeepsRawMarks(t *testing.T) {
	qs := []QuestionPoints{{1, 40}, {2, 35}, {3, 25}}
	got := Weights(100, qs)
	for _, q := range qs {
		if got[q.QuestionID] != float64(q.Marks) {
			t.Errorf("question %d: expected %d, got %v", q.QuestionID, q.Marks, got[q.QuestionID])
		}
	}
}

func TestWeightsScaled(t *testing.T) {
	tests := []struct {
		name  string
		total int
		qs    []QuestionPoints
		want  map[int64]float64
	}{
		{"30/70 into 50", 50, []QuestionPoints{{1, 30}, {2, 70}}, map[int64]float64{1: 15, 2: 35}},
		{"equal thirds", 10, []QuestionPoints{{1, 1}, {2, 1}, {3, 1}}, map[int64]float64{1: 3.33, 2: 3.33, 3: 3.33}},
		{"scale up", 100, []QuestionPoints{{1, 2}, {2, 3}}, map[int64]float64{1: 40, 2: 60}},
		{"zero point question", 20, []QuestionPoints{{1, 0}, {2, 5}}, map[int64]float64{1: 0, 2: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Weights(tt.total, tt.qs)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d weights, got %d", len(tt.want), len(got))
			}
			for id, w := range tt.want {
				if got[id] != w {
					t.Errorf("question %d: expected %v, got %v", id, w, got[id])
				}
			}
		})
	}
}

func TestWeightsSumToTotal(t *testing.T) {
	sets := [][]QuestionPoints{
		{{1, 3}, {2, 7}, {3, 11}, {4, 13}},
		{{1, 1}, {2, 1}, {3, 1}, {4, 1}, {5, 1}, {6, 1}, {7, 1}},
		{{1, 17}, {2, 4}},
		{{1, 9}, {2, 9}, {3, 9}},
	}
	for _, total := range []int{10, 33, 50, 100, 250} {
		for _, qs := range sets {
			sum := 0.0
			for _, w := range Weights(total, qs) {
				sum += w
			}
			tolerance := 0.01*float64(len(qs)) + 1e-9
			if math.Abs(sum-float64(total)) > tolerance {
				t.Errorf("total %d, %v: weights sum to %v", total, qs, sum)
			}
		}
	}
}

func TestWeightsEdgeCases(t *testing.T) {
	if got := Weights(50, nil); len(got) != 0 {
		t.Errorf("expected empty map for no questions, got %v", got)
	}

	got := Weights(50, []QuestionPoints{{1, 0}, {2, 0}})
	if len(got) != 2 {
		t.Fatalf("expected 2 weights, got %d", len(got))
	}
	for id, w := range got {
		if w != 0 || math.IsNaN(w) {
			t.Errorf("question %d: expected 0 for zero raw sum, got %v", id, w)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		qs          []QuestionPoints
		wantBalance bool
		wantScale   bool
		wantAny     bool
	}{
		{"balanced", 100, []QuestionPoints{{1, 50}, {2, 50}}, true, false, true},
		{"needs scaling", 50, []QuestionPoints{{1, 30}, {2, 70}}, false, true, true},
		{"no questions", 50, nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.total, tt.qs)
			if v.Balanced != tt.wantBalance {
				t.Errorf("Balanced = %v, want %v", v.Balanced, tt.wantBalance)
			}
			if v.RequiresScaling != tt.wantScale {
				t.Errorf("RequiresScaling = %v, want %v", v.RequiresScaling, tt.wantScale)
			}
			if v.HasQuestions != tt.wantAny {
				t.Errorf("HasQuestions = %v, want %v", v.HasQuestions, tt.wantAny)
			}
			if v.TotalExamMarks != tt.total {
				t.Errorf("TotalExamMarks = %d, want %d", v.TotalExamMarks, tt.total)
			}
		})
	}
}

func TestSummarizeOrdersByDisplayOrder(t *testing.T) {
	exam := model.Exam{ID: 7, Title: "Networks", TotalMarks: 50}
	questions := []model.Question{
		{ID: 11, Text: "Second", Marks: 70, Order: 2},
		{ID: 10, Text: "First", Marks: 30, Order: 1},
	}

	s := Summarize(exam, questions)
	if !s.IsScalingNeeded {
		t.Error("expected scaling to be needed")
	}
	if s.TotalRawPoints != 100 {
		t.Errorf("expected raw total 100, got %d", s.TotalRawPoints)
	}
	if len(s.QuestionWeights) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(s.QuestionWeights))
	}
	if s.QuestionWeights[0].QuestionID != 10 || s.QuestionWeights[0].WeightedMarks != 15 {
		t.Errorf("unexpected first row: %+v", s.QuestionWeights[0])
	}
	if s.QuestionWeights[1].WeightedMarks != 35 {
		t.Errorf("unexpected second row: %+v", s.QuestionWeights[1])
	}
}
