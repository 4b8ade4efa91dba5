package exam

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hems/examhall/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidCredential = errors.New("invalid or used password")
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrAttemptInProgress = errors.New("attempt in progress")
	ErrAttemptBlocked    = errors.New("attempt is blocked")
	ErrDeadlinePassed    = errors.New("exam time is over")
	ErrInvalidTransition = model.ErrInvalidTransition
	ErrExamUnavailable   = errors.New("exam is not open")
	ErrForbidden         = errors.New("forbidden")
	ErrQuestionInUse     = errors.New("question has recorded answers")
	ErrPasswordUsed      = errors.New("password already used")
	ErrGradingFailure    = errors.New("grading failed")
	ErrValidation        = errors.New("validation failed")
)

// AttemptStateError reports that an operation hit an attempt in a state
// the caller should be redirected to. It unwraps to ErrAlreadySubmitted or
// ErrAttemptInProgress.
type AttemptStateError struct {
	AttemptID int64
	Err       error
}

func (e *AttemptStateError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.AttemptID, e.Err)
}

func (e *AttemptStateError) Unwrap() error { return e.Err }

// GradingError means an attempt is submitted but has no stored result.
// Grading can be retried.
type GradingError struct {
	AttemptID int64
	Err       error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("grading attempt %d: %v", e.AttemptID, e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

// Is makes every GradingError match ErrGradingFailure.
func (e *GradingError) Is(target error) bool { return target == ErrGradingFailure }

// ValidationError maps input field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
