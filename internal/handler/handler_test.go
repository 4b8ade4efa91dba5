package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hems/examhall/internal/auth"
	"github.com/hems/examhall/internal/exam"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/monitor"
	"github.com/hems/examhall/internal/store"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type env struct {
	store  *store.Store
	svc    *exam.Service
	tokens *auth.Issuer
	router http.Handler
	coord  model.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.New(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens, err := auth.NewIssuer("handler-test-secret-0123", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	svc := exam.NewService(st, exam.Config{HashCost: bcrypt.MinCost})
	h := New(st, svc, monitor.New(st), tokens, model.AppConfig{HashCost: bcrypt.MinCost})

	r := chi.NewRouter()
	r.Use(appI18n.Middleware)
	h.Routes(r)

	e := &env{store: st, svc: svc, tokens: tokens, router: r}
	e.coord = e.user(t, "coord", "coordpass", model.UserRoleCoordinator)
	return e
}

func (e *env) user(t *testing.T, username, password string, role model.UserRole) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := model.User{Username: username, DisplayName: username, PasswordHash: string(hash), Role: role, Active: true}
	u.ID, err = e.store.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func (e *env) student(t *testing.T, username, password string) model.Student {
	t.Helper()
	u := e.user(t, username, password, model.UserRoleStudent)
	st := model.Student{UserID: u.ID, FullName: "Student " + username}
	var err error
	st.ID, err = e.store.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return st
}

// publishedExam creates a published exam with two five point questions
// whose first choice is correct.
func (e *env) publishedExam(t *testing.T) (int64, []model.Question) {
	t.Helper()
	ctx := context.Background()
	id, err := e.svc.CreateExam(ctx, e.coord, exam.ExamInput{Title: "Operating Systems", DurationMinutes: 30, TotalMarks: 10})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	for i := 1; i <= 2; i++ {
		_, err := e.svc.AddQuestion(ctx, e.coord, id, exam.QuestionInput{
			Text:    fmt.Sprintf("Question %d", i),
			Marks:   5,
			Choices: []exam.ChoiceInput{{Text: "right", Correct: true}, {Text: "wrong"}},
		})
		if err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	if err := e.svc.Publish(ctx, e.coord, id); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	qs, err := e.store.ListQuestions(ctx, id)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	return id, qs
}

func (e *env) secretFor(t *testing.T, examID int64, st model.Student) string {
	t.Helper()
	issued, err := e.svc.GeneratePasswords(context.Background(), e.coord, examID, 0)
	if err != nil {
		t.Fatalf("GeneratePasswords: %v", err)
	}
	for _, p := range issued {
		if p.StudentID == st.ID {
			return p.Secret
		}
	}
	t.Fatalf("no password for student %d", st.ID)
	return ""
}

// client is a cookie-keeping browser stand-in.
type client struct {
	t   *testing.T
	h   http.Handler
	jar map[string]string
}

func (e *env) client(t *testing.T) *client {
	return &client{t: t, h: e.router, jar: map[string]string{}}
}

func (c *client) do(method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for name, v := range c.jar {
		req.AddCookie(&http.Cookie{Name: name, Value: v})
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.jar, ck.Name)
		} else {
			c.jar[ck.Name] = ck.Value
		}
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil, nil)
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if _, ok := form["csrf_token"]; !ok {
		form.Set("csrf_token", c.jar[csrfCookieName])
	}
	return c.do(http.MethodPost, path, strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
}

func (c *client) postJSON(path string, v any) *httptest.ResponseRecorder {
	c.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		c.t.Fatal(err)
	}
	return c.do(http.MethodPost, path, bytes.NewReader(b), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		csrfHeader:     c.jar[csrfCookieName],
	})
}

func (c *client) login(username, password string) {
	c.t.Helper()
	c.get("/login")
	rec := c.postForm("/login", url.Values{"username": {username}, "password": {password}})
	if rec.Code != http.StatusSeeOther {
		c.t.Fatalf("login %s: status %d", username, rec.Code)
	}
}

func bearer(e *env, t *testing.T, u model.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	token, err := e.tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.client(t).get("/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestLoginFlow(t *testing.T) {
	e := newEnv(t)
	e.student(t, "alice", "alicepass")
	c := e.client(t)

	rec := c.get("/login")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /login: %d", rec.Code)
	}
	if c.jar[csrfCookieName] == "" {
		t.Fatal("expected a CSRF cookie")
	}

	rec = c.postForm("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid username or password.") {
		t.Error("expected the login error message")
	}

	rec = c.postForm("/login", url.Values{"username": {"alice"}, "password": {"alicepass"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("login: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
	if c.jar[sessionCookieName] == "" {
		t.Fatal("expected a session cookie")
	}

	rec = c.get("/")
	if rec.Header().Get("Location") != "/student/" {
		t.Errorf("index redirect = %q", rec.Header().Get("Location"))
	}

	rec = c.postForm("/logout", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("logout: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = c.get("/student/")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("after logout: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCSRF(t *testing.T) {
	e := newEnv(t)
	e.student(t, "alice", "alicepass")

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "not-the-cookie-value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.client(t)
			c.get("/login")
			form := url.Values{"username": {"alice"}, "password": {"alicepass"}, "csrf_token": {tt.token}}
			if rec := c.postForm("/login", form); rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
		})
	}

	t.Run("no cookie", func(t *testing.T) {
		c := e.client(t)
		rec := c.postForm("/login", url.Values{"username": {"alice"}, "password": {"alicepass"}})
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestUnauthenticated(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)

	rec := c.get("/student/")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("browser: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = c.do(http.MethodGet, "/coordinator/exams", nil, map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api: status %d, want 401", rec.Code)
	}
}

func TestRoleGuards(t *testing.T) {
	e := newEnv(t)
	e.student(t, "alice", "alicepass")
	c := e.client(t)
	c.login("alice", "alicepass")

	for _, path := range []string{"/coordinator/exams", "/admin/users"} {
		if rec := c.get(path); rec.Code != http.StatusForbidden {
			t.Errorf("GET %s: status %d, want 403", path, rec.Code)
		}
	}

	// Staff accounts cannot use student routes.
	cc := e.client(t)
	cc.login("coord", "coordpass")
	if rec := cc.get("/student/"); rec.Code != http.StatusForbidden {
		t.Errorf("coordinator on student routes: %d", rec.Code)
	}
}

func attemptIDFrom(t *testing.T, location string) int64 {
	t.Helper()
	var id int64
	if _, err := fmt.Sscanf(location, "/student/attempts/%d", &id); err != nil {
		t.Fatalf("unexpected location %q", location)
	}
	return id
}

func TestStudentExamFlow(t *testing.T) {
	e := newEnv(t)
	alice := e.student(t, "alice", "alicepass")
	examID, qs := e.publishedExam(t)
	secret := e.secretFor(t, examID, alice)

	c := e.client(t)
	c.login("alice", "alicepass")

	rec := c.get("/student/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Operating Systems") {
		t.Fatalf("home: %d", rec.Code)
	}
	examPage := fmt.Sprintf("/student/exams/%d", examID)
	if rec := c.get(examPage); rec.Code != http.StatusOK {
		t.Fatalf("password entry: %d", rec.Code)
	}

	rec = c.postForm(examPage+"/start", url.Values{"password": {"WRONG123"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid or used exam password.") {
		t.Error("expected the generic credential message")
	}

	rec = c.postForm(examPage+"/start", url.Values{"password": {strings.ToLower(secret)}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("redeem: status %d", rec.Code)
	}
	attemptID := attemptIDFrom(t, rec.Header().Get("Location"))
	attemptPath := fmt.Sprintf("/student/attempts/%d", attemptID)

	rec = c.get(attemptPath)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Question 1") {
		t.Fatalf("take page: %d", rec.Code)
	}

	right := qs[0].Choices[0].ID
	if rec := c.postJSON(attemptPath+"/answers", answerRequest{QuestionID: qs[0].ID, SelectedChoiceID: &right}); rec.Code != http.StatusOK {
		t.Fatalf("answer: %d %s", rec.Code, rec.Body.String())
	}
	foreign := qs[1].Choices[0].ID
	rec = c.postJSON(attemptPath+"/answers", answerRequest{QuestionID: qs[0].ID, SelectedChoiceID: &foreign})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("foreign choice: status %d", rec.Code)
	}
	if rec := c.postJSON(attemptPath+"/heartbeat", heartbeatRequest{Detail: "Question 1"}); rec.Code != http.StatusNoContent {
		t.Errorf("heartbeat: %d", rec.Code)
	}

	rec = c.postForm(attemptPath+"/submit", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != attemptPath+"/result" {
		t.Fatalf("submit: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = c.get(attemptPath + "/result")
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("result: %d", rec.Code)
	}
	for _, want := range []string{"50.00%", "You skipped 1 question.", "will be available once results are published"} {
		if !strings.Contains(body, want) {
			t.Errorf("result page missing %q", want)
		}
	}

	// Entering the exam again leads to the result.
	rec = c.get(examPage)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != attemptPath+"/result" {
		t.Errorf("re-entry: %d -> %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = c.postJSON(attemptPath+"/answers", answerRequest{QuestionID: qs[1].ID, SelectedChoiceID: &foreign})
	if rec.Code != http.StatusConflict {
		t.Fatalf("answer after submit: status %d", rec.Code)
	}
	var eb errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &eb); err != nil || eb.Redirect != attemptPath+"/result" {
		t.Errorf("expected a redirect hint, got %+v (%v)", eb, err)
	}
}

func TestBlockedAttempt(t *testing.T) {
	e := newEnv(t)
	alice := e.student(t, "alice", "alicepass")
	examID, qs := e.publishedExam(t)
	attemptID, err := e.svc.Redeem(context.Background(), alice, examID, e.secretFor(t, examID, alice), exam.Origin{})
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	rec := bearer(e, t, e.coord, http.MethodPost, fmt.Sprintf("/coordinator/attempts/%d/block", attemptID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("block: %d %s", rec.Code, rec.Body.String())
	}

	c := e.client(t)
	c.login("alice", "alicepass")
	choice := qs[0].Choices[0].ID
	rec = c.postJSON(fmt.Sprintf("/student/attempts/%d/answers", attemptID), answerRequest{QuestionID: qs[0].ID, SelectedChoiceID: &choice})
	if rec.Code != http.StatusLocked {
		t.Errorf("answer while blocked: status %d, want 423", rec.Code)
	}
}

func TestMonitorStats(t *testing.T) {
	e := newEnv(t)
	alice := e.student(t, "alice", "alicepass")
	examID, _ := e.publishedExam(t)
	e.secretFor(t, examID, alice)

	rec := bearer(e, t, e.coord, http.MethodGet, fmt.Sprintf("/coordinator/exams/%d/monitor-stats", examID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("monitor-stats: %d %s", rec.Code, rec.Body.String())
	}
	var snap monitor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TotalAssigned != 1 || snap.NotStartedCount != 1 || len(snap.StudentActivities) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if got := snap.StudentActivities[0].LatestActivity; got != monitor.NoSignal {
		t.Errorf("latest activity = %q, want %q", got, monitor.NoSignal)
	}

	tests := []struct {
		name   string
		header string
		path   string
		want   int
	}{
		{"unknown exam", "", "/coordinator/exams/999/monitor-stats", http.StatusNotFound},
		{"garbage token", "Bearer nope", fmt.Sprintf("/coordinator/exams/%d/monitor-stats", examID), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.header == "" {
				rec = bearer(e, t, e.coord, http.MethodGet, tt.path, nil)
			} else {
				req := httptest.NewRequest(http.MethodGet, tt.path, nil)
				req.Header.Set("Authorization", tt.header)
				rec = httptest.NewRecorder()
				e.router.ServeHTTP(rec, req)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAssignStudentRoutes(t *testing.T) {
	e := newEnv(t)
	alice := e.student(t, "alice", "alicepass")
	bob := e.student(t, "bob", "bobpass")
	examID, _ := e.publishedExam(t)
	base := fmt.Sprintf("/coordinator/exams/%d/passwords", examID)

	assigned := func(t *testing.T) int {
		t.Helper()
		rec := bearer(e, t, e.coord, http.MethodGet, fmt.Sprintf("/coordinator/exams/%d/monitor-stats", examID), nil)
		var snap monitor.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		return snap.TotalAssigned
	}

	rec := bearer(e, t, e.coord, http.MethodPost, base+"/assign", assignRequest{StudentID: alice.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}
	var issued exam.IssuedPassword
	if err := json.Unmarshal(rec.Body.Bytes(), &issued); err != nil || issued.StudentID != alice.ID || issued.Secret == "" {
		t.Fatalf("unexpected issued password %+v, %v", issued, err)
	}
	if n := assigned(t); n != 1 {
		t.Errorf("total assigned = %d, want 1", n)
	}

	c := e.client(t)
	c.login("coord", "coordpass")
	rec = c.postForm(base+"/assign", url.Values{"student_id": {strconv.FormatInt(bob.ID, 10)}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `class="secret"`) {
		t.Fatalf("assign form: %d %s", rec.Code, rec.Body.String())
	}
	if n := assigned(t); n != 2 {
		t.Errorf("total assigned = %d, want 2", n)
	}

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unassign alice", base + "/unassign", assignRequest{StudentID: alice.ID}, http.StatusNoContent},
		{"unassign alice again", base + "/unassign", assignRequest{StudentID: alice.ID}, http.StatusNotFound},
		{"assign unknown student", base + "/assign", assignRequest{StudentID: 9999}, http.StatusNotFound},
		{"assign on unknown exam", "/coordinator/exams/9999/passwords/assign", assignRequest{StudentID: bob.ID}, http.StatusNotFound},
		{"unknown field", base + "/assign", map[string]any{"student": bob.ID}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := bearer(e, t, e.coord, http.MethodPost, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if n := assigned(t); n != 1 {
		t.Errorf("total assigned after unassign = %d, want 1", n)
	}

	rec = c.postForm(base+"/unassign", url.Values{"student_id": {strconv.FormatInt(bob.ID, 10)}})
	if rec.Code != http.StatusSeeOther {
		t.Errorf("unassign form: status %d", rec.Code)
	}
	if n := assigned(t); n != 0 {
		t.Errorf("total assigned = %d, want 0", n)
	}

	student := e.client(t)
	e.user(t, "mallory", "mallorypass", model.UserRoleStudent)
	student.login("mallory", "mallorypass")
	if rec := student.postForm(base+"/assign", url.Values{"student_id": {strconv.FormatInt(bob.ID, 10)}}); rec.Code != http.StatusForbidden {
		t.Errorf("student assign: status %d, want 403", rec.Code)
	}
}

func TestAuthoringAPI(t *testing.T) {
	e := newEnv(t)

	rec := bearer(e, t, e.coord, http.MethodPost, "/coordinator/exams", exam.ExamInput{DurationMinutes: 30, TotalMarks: 10})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid exam: status %d", rec.Code)
	}
	var eb errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &eb); err != nil || eb.Fields["title"] == "" {
		t.Errorf("expected a title field error, got %+v", eb)
	}

	rec = bearer(e, t, e.coord, http.MethodPost, "/coordinator/exams", exam.ExamInput{Title: "Networks", DurationMinutes: 30, TotalMarks: 10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create exam: %d %s", rec.Code, rec.Body.String())
	}
	var created map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	base := fmt.Sprintf("/coordinator/exams/%d", created["id"])

	rec = bearer(e, t, e.coord, http.MethodPost, base+"/questions", exam.QuestionInput{
		Text: "Which layer routes packets?", Marks: 4,
		Choices: []exam.ChoiceInput{{Text: "Network", Correct: true}, {Text: "Session"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add question: %d %s", rec.Code, rec.Body.String())
	}

	rec = bearer(e, t, e.coord, http.MethodGet, base+"/weights", nil)
	var wr weightsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &wr); err != nil {
		t.Fatalf("decode weights: %v", err)
	}
	if !wr.Validation.RequiresScaling || len(wr.Summary.QuestionWeights) != 1 || wr.Summary.QuestionWeights[0].WeightedMarks != 10 {
		t.Errorf("unexpected weights: %+v", wr)
	}

	steps := []struct {
		action string
		want   int
	}{
		{"publish", http.StatusNoContent},
		{"publish", http.StatusConflict},
		{"activate", http.StatusNoContent},
		{"explode", http.StatusNotFound},
		{"close", http.StatusNoContent},
		{"activate", http.StatusConflict},
	}
	for _, s := range steps {
		rec := bearer(e, t, e.coord, http.MethodPost, base+"/status/"+s.action, nil)
		if rec.Code != s.want {
			t.Errorf("%s: status %d, want %d", s.action, rec.Code, s.want)
		}
	}
}

func TestAdminCreateUser(t *testing.T) {
	e := newEnv(t)
	e.user(t, "root", "rootpass1", model.UserRoleAdmin)
	c := e.client(t)
	c.login("root", "rootpass1")

	rec := c.postForm("/admin/users", url.Values{"username": {"bob"}, "password": {"short"}, "role": {"student"}, "full_name": {"Bob"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short password: status %d", rec.Code)
	}
	rec = c.postForm("/admin/users", url.Values{"username": {"bob"}, "password": {"longenough"}, "role": {"student"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("student without name: status %d", rec.Code)
	}

	rec = c.postForm("/admin/users", url.Values{
		"username": {"bob"}, "password": {"longenough"}, "role": {"student"},
		"full_name": {"Bob Builder"}, "email": {"bob@example.edu"}, "year_of_study": {"2"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create user: status %d", rec.Code)
	}
	ctx := context.Background()
	u, err := e.store.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	st, err := e.store.GetStudentByUserID(ctx, u.ID)
	if err != nil || st.FullName != "Bob Builder" || st.YearOfStudy != 2 {
		t.Errorf("student profile = %+v, %v", st, err)
	}

	rec = c.postForm("/admin/users", url.Values{"username": {"bob"}, "password": {"longenough"}, "role": {"coordinator"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate username: status %d", rec.Code)
	}

	bob := e.client(t)
	bob.login("bob", "longenough")
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("exam 3: %w", exam.ErrNotFound), http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{exam.ErrInvalidCredential, http.StatusUnauthorized},
		{exam.ErrAttemptBlocked, http.StatusLocked},
		{exam.ErrDeadlinePassed, http.StatusConflict},
		{exam.ErrInvalidTransition, http.StatusConflict},
		{exam.ErrQuestionInUse, http.StatusConflict},
		{&exam.ValidationError{Fields: map[string]string{"title": "is required"}}, http.StatusUnprocessableEntity},
		{&exam.GradingError{AttemptID: 1, Err: errors.New("disk full")}, http.StatusServiceUnavailable},
		{exam.ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := statusOf(tt.err); got != tt.want {
				t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
