package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hems/examhall/internal/llm/prompts"
	"github.com/hems/examhall/internal/model"
)

func TestParseTips(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		limit   int
		want    []string
		wantErr bool
	}{
		{"two tips", `{"tips": ["Revise locks.", "Practice select."]}`, 3, []string{"Revise locks.", "Practice select."}, false},
		{"blank tips dropped", `{"tips": ["  ", "Read the memory model."]}`, 3, []string{"Read the memory model."}, false},
		{"limit applied", `{"tips": ["a", "b", "c", "d"]}`, 2, []string{"a", "b"}, false},
		{"no tips", `{}`, 3, nil, false},
		{"not json", `Here are some tips`, 3, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTips(tt.raw, tt.limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTips() error = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("parseTips() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStudyTips(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: gotReq.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: `{"tips": ["Revise how mutexes protect shared memory."]}`,
				},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", "test-key", "test-model", WithVariant(prompts.VariantDetailed), WithMaxTips(2))
	tips, err := c.StudyTips(context.Background(), "Concurrency", []model.MissedQuestion{
		{Question: "What does a mutex guard?", Chosen: "Goroutine stacks", Correct: "Shared memory"},
	})
	if err != nil {
		t.Fatalf("StudyTips: %v", err)
	}
	if len(tips) != 1 || tips[0] != "Revise how mutexes protect shared memory." {
		t.Errorf("unexpected tips: %q", tips)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 1 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "What does a mutex guard?") {
		t.Error("prompt should contain the missed question")
	}
}

func TestStudyTipsNothingMissed(t *testing.T) {
	c := New("http://127.0.0.1:1/v1", "", "m")
	tips, err := c.StudyTips(context.Background(), "X", nil)
	if err != nil || tips != nil {
		t.Errorf("expected no call and no tips, got %v, %v", tips, err)
	}
}

func TestStudyTipsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", "k", "m")
	_, err := c.StudyTips(context.Background(), "X", []model.MissedQuestion{{Question: "Q", Correct: "A"}})
	if err == nil {
		t.Fatal("expected error from failing server")
	}
}
