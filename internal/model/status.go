package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the current state.
var ErrInvalidTransition = errors.New("invalid status transition")

// ExamStatus is the lifecycle state of an exam.
type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
	ExamActive    ExamStatus = "active"
	ExamClosed    ExamStatus = "closed"
)

// A paused exam returns to draft. A draft may be closed so a paused
// sitting can be ended without reopening it.
var examTransitions = map[ExamStatus][]ExamStatus{
	ExamDraft:     {ExamPublished, ExamActive, ExamClosed},
	ExamPublished: {ExamActive, ExamClosed},
	ExamActive:    {ExamDraft, ExamClosed},
}

// Transition returns the next status or ErrInvalidTransition.
func (s ExamStatus) Transition(to ExamStatus) (ExamStatus, error) {
	for _, allowed := range examTransitions[s] {
		if allowed == to {
			return to, nil
		}
	}
	return s, fmt.Errorf("exam %s -> %s: %w", s, to, ErrInvalidTransition)
}

// Open reports whether passwords for the exam may be redeemed.
func (s ExamStatus) Open() bool {
	return s == ExamPublished || s == ExamActive
}

// AttemptStatus is the state of an exam attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptBlocked    AttemptStatus = "blocked"
)

// Terminal reports whether no further transition is possible.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted
}

// Label is the human-readable status used by the monitor feed.
func (s AttemptStatus) Label() string {
	switch s {
	case AttemptInProgress:
		return "In Progress"
	case AttemptSubmitted:
		return "Submitted"
	case AttemptBlocked:
		return "Blocked"
	}
	return string(s)
}

// NotStartedLabel is shown for assigned students without an attempt.
const NotStartedLabel = "Not Started"

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptInProgress: {AttemptSubmitted, AttemptBlocked},
	AttemptBlocked:    {AttemptInProgress},
}

// Transition returns the next status or ErrInvalidTransition.
func (s AttemptStatus) Transition(to AttemptStatus) (AttemptStatus, error) {
	for _, allowed := range attemptTransitions[s] {
		if allowed == to {
			return to, nil
		}
	}
	return s, fmt.Errorf("attempt %s -> %s: %w", s, to, ErrInvalidTransition)
}
