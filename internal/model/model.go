package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleCoordinator authors exams and monitors sittings.
	UserRoleCoordinator UserRole = "coordinator"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleCoordinator, UserRoleAdmin:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student is the academic profile attached to a student user.
type Student struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	YearOfStudy int    `json:"year_of_study"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// QuestionType is the answer format of a question. Only single-answer
// multiple choice is graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
)

// Exam is a timed examination authored by a coordinator.
type Exam struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	DurationMinutes  int        `json:"duration_minutes"`
	TotalMarks       int        `json:"total_marks"`
	Status           ExamStatus `json:"status"`
	ResultsPublished bool       `json:"results_published"`
	CreatedBy        int64      `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Duration returns the sitting length.
func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Question belongs to exactly one exam. Marks are raw points before weighting.
type Question struct {
	ID      int64        `json:"id"`
	ExamID  int64        `json:"exam_id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Marks   int          `json:"marks"`
	Order   int          `json:"order"`
	Choices []Choice     `json:"choices,omitempty"`
}

// Choice belongs to exactly one question.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"-"`
}

// ExamPassword is a one-time credential scoping one student to one exam.
// Only the bcrypt hash of the secret is stored.
type ExamPassword struct {
	ID         int64     `json:"id"`
	ExamID     int64     `json:"exam_id"`
	StudentID  int64     `json:"student_id"`
	SecretHash string    `json:"-"`
	IsUsed     bool      `json:"is_used"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Expired reports whether the password can no longer be redeemed at now.
func (p ExamPassword) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// PasswordAssignment is an exam password joined with its student, as shown
// on the coordinator's password list. It never carries the secret.
type PasswordAssignment struct {
	ExamPassword
	StudentName string `json:"student_name"`
}

// Attempt is one student's sitting of one exam.
type Attempt struct {
	ID        int64         `json:"id"`
	ExamID    int64         `json:"exam_id"`
	StudentID int64         `json:"student_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Status    AttemptStatus `json:"status"`
	IsBlocked bool          `json:"is_blocked"`
}

// Answer is a student's response to one question within one attempt.
type Answer struct {
	ID               int64     `json:"id"`
	AttemptID        int64     `json:"attempt_id"`
	QuestionID       int64     `json:"question_id"`
	SelectedChoiceID *int64    `json:"selected_choice_id,omitempty"`
	IsFlagged        bool      `json:"is_flagged"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PassStatus is the pass/fail outcome of a result.
type PassStatus string

const (
	Pass PassStatus = "Pass"
	Fail PassStatus = "Fail"
)

// Result is the graded outcome of exactly one attempt.
type Result struct {
	ID          int64      `json:"id"`
	AttemptID   int64      `json:"attempt_id"`
	TotalScore  int        `json:"total_score"`
	Earned      float64    `json:"earned"`
	Percentage  float64    `json:"percentage"`
	Grade       string     `json:"grade"`
	PassStatus  PassStatus `json:"pass_status"`
	PublishedAt time.Time  `json:"published_at"`
}

// ActivityKind classifies activity log entries.
type ActivityKind string

const (
	ActivityLogin     ActivityKind = "login"
	ActivityLogout    ActivityKind = "logout"
	ActivityHeartbeat ActivityKind = "heartbeat"
	ActivityExam      ActivityKind = "exam"
	ActivityAdmin     ActivityKind = "admin"
)

// HeartbeatPrefix starts every heartbeat action text.
const HeartbeatPrefix = "Exam Heartbeat: "

// ActivityLog is an append-only event record.
type ActivityLog struct {
	ID         int64        `json:"id"`
	UserID     int64        `json:"user_id"`
	Kind       ActivityKind `json:"kind"`
	Action     string       `json:"action"`
	Timestamp  time.Time    `json:"timestamp"`
	IPAddress  string       `json:"ip_address,omitempty"`
	DeviceInfo string       `json:"device_info,omitempty"`
}

// MissedQuestion describes a question answered wrongly or skipped, as
// given to the study-tip advisor.
type MissedQuestion struct {
	Question string `json:"question"`
	Chosen   string `json:"chosen,omitempty"`
	Correct  string `json:"correct"`
}

// FeedEntry is one line of the live monitor feed.
type FeedEntry struct {
	Username  string       `json:"username"`
	Kind      ActivityKind `json:"kind"`
	Action    string       `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	SecureCookies   bool          // Set Secure flag on cookies (disable for local dev)
	DeadlineGrace   time.Duration // Answers accepted this long past the exam duration
	PasswordTTL     time.Duration
	PasswordLength  int
	HashCost        int // bcrypt cost for user and exam passwords
	LoginWindow     time.Duration
	HeartbeatWindow time.Duration
	FeedSize        int
	CORSOrigins     []string
}
