// Package llm produces study tips for missed exam questions through an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hems/examhall/internal/llm/prompts"
	"github.com/hems/examhall/internal/model"
)

// maxMissed bounds how many missed questions are sent in one request.
const maxMissed = 20

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
	maxTips int
}

// Option configures a Client.
type Option func(*Client)

// WithVariant selects the study tips prompt.
func WithVariant(v prompts.Variant) Option {
	return func(c *Client) { c.variant = v }
}

// WithMaxTips limits the number of tips returned.
func WithMaxTips(n int) Option {
	return func(c *Client) { c.maxTips = n }
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	c := &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.VariantConcise,
		maxTips: 3,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type tipsResponse struct {
	Tips []string `json:"tips"`
}

// StudyTips asks the model for study tips covering the missed questions.
func (c *Client) StudyTips(ctx context.Context, examTitle string, missed []model.MissedQuestion) ([]string, error) {
	if len(missed) == 0 {
		return nil, nil
	}
	if len(missed) > maxMissed {
		missed = missed[:maxMissed]
	}
	prompt, err := prompts.BuildStudyTips(c.variant, examTitle, missed, c.maxTips)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseTips(raw, c.maxTips)
}

func parseTips(raw string, limit int) ([]string, error) {
	var r tipsResponse
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	var tips []string
	for _, t := range r.Tips {
		if t = strings.TrimSpace(t); t != "" {
			tips = append(tips, t)
		}
	}
	if limit > 0 && len(tips) > limit {
		tips = tips[:limit]
	}
	return tips, nil
}
