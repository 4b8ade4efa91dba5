package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "AppTitle", "Exam Hall"},
		{"en", "InvalidExamPassword", "Invalid or used exam password."},
		{"ru", "AppTitle", "Экзаменационный зал"},
		{"ru", "StartExam", "Начать экзамен"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	en := initLang(t, "en")
	if got := Tp(en, "SkippedQuestions", 1); got != "You skipped 1 question. Time management is key." {
		t.Errorf("Tp(SkippedQuestions, 1) = %q", got)
	}
	if got := Tp(en, "SkippedQuestions", 3); got != "You skipped 3 questions. Time management is key." {
		t.Errorf("Tp(SkippedQuestions, 3) = %q", got)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "Minutes", 5); got != "5 минут" {
		t.Errorf("Tp(Minutes, 5) = %q", got)
	}
	if got := Tp(ru, "Minutes", 2); got != "2 минуты" {
		t.Errorf("Tp(Minutes, 2) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	got := Td(ctx, "ScalingNotice", map[string]any{"Raw": 100, "Total": 50})
	if got != "Question points total 100 and will be scaled to 50 marks." {
		t.Errorf("Td(ScalingNotice) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the ID back", got)
	}
}

func TestLanguages(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if n := len(bundle.LanguageTags()); n != 2 {
		t.Errorf("expected 2 languages, got %d", n)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(T(r.Context(), "Login")))
	}))

	tests := []struct {
		name   string
		cookie string
		accept string
		want   string
	}{
		{"fallback", "", "", "Log in"},
		{"accept-language", "", "ru-RU,ru;q=0.9", "Войти"},
		{"cookie wins", "en", "ru", "Log in"},
		{"unknown language", "", "fr", "Log in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
