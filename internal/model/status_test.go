package model

import (
	"errors"
	"testing"
)

func TestExamTransition(t *testing.T) {
	tests := []struct {
		from, to ExamStatus
		ok       bool
	}{
		{ExamDraft, ExamPublished, true},
		{ExamDraft, ExamActive, true},
		{ExamDraft, ExamClosed, true},
		{ExamPublished, ExamActive, true},
		{ExamPublished, ExamClosed, true},
		{ExamPublished, ExamDraft, false},
		{ExamActive, ExamDraft, true},
		{ExamActive, ExamClosed, true},
		{ExamActive, ExamPublished, false},
		{ExamClosed, ExamDraft, false},
		{ExamClosed, ExamActive, false},
		{ExamDraft, ExamDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, err := tt.from.Transition(tt.to)
			if tt.ok {
				if err != nil || got != tt.to {
					t.Errorf("Transition = %s, %v; want %s", got, err, tt.to)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTransition) || got != tt.from {
				t.Errorf("Transition = %s, %v; want ErrInvalidTransition", got, err)
			}
		})
	}
}

func TestExamStatusOpen(t *testing.T) {
	for s, want := range map[ExamStatus]bool{
		ExamDraft: false, ExamPublished: true, ExamActive: true, ExamClosed: false,
	} {
		if got := s.Open(); got != want {
			t.Errorf("%s.Open() = %v, want %v", s, got, want)
		}
	}
}
