/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	openAIMaxRetries     = 2
)

// OpenAIConfig configures the chat-completion backed coach.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAICoach generates advice and summaries with an OpenAI-compatible chat completion API.
type OpenAICoach struct {
	client openaigo.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAICoach creates a coach. An empty API key is rejected.
func NewOpenAICoach(cfg OpenAIConfig, httpClient *http.Client, logger zerolog.Logger) (*OpenAICoach, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai coach: %w: api key is required", ErrCredentials)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	client := openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(openAIMaxRetries),
		option.WithRequestTimeout(timeout),
	)

	return &OpenAICoach{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "openai_coach").Logger(),
	}, nil
}

// GenerateAdvice asks for exactly coaching.SuggestionCount suggestions. Unparseable output
// is reported as coaching.ErrMalformedResponse.
func (c *OpenAICoach) GenerateAdvice(ctx context.Context, req coaching.AdviceRequest) ([]string, error) {
	text, err := c.complete(ctx, "advice", coaching.AdviceSystemPrompt, coaching.BuildAdvicePrompt(req))
	if err != nil {
		return nil, err
	}
	options, err := coaching.ParseSuggestions(text, coaching.SuggestionCount)
	if err != nil {
		c.logger.Debug().Str("raw", text).Msg("unparseable advice response")
		return nil, fmt.Errorf("generate advice: %w", err)
	}
	return options, nil
}

// Summarize returns the markdown review for a finished session.
func (c *OpenAICoach) Summarize(ctx context.Context, req coaching.SummaryRequest) (string, error) {
	text, err := c.complete(ctx, "summary", coaching.SummarySystemPrompt, coaching.BuildSummaryPrompt(req))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("summarize: empty completion")
	}
	return text, nil
}

func (c *OpenAICoach) complete(ctx context.Context, kind, system, user string) (text string, err error) {
	ctx, span := telemetry.StartCollaboratorSpan(ctx, "openai", kind)
	defer span.End()

	start := time.Now()
	defer func() {
		telemetry.ObserveCollaborator(kind, start, err)
		telemetry.RecordError(span, err)
	}()

	resp, err := c.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(c.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(system),
			openaigo.UserMessage(user),
		},
	})
	if err != nil {
		var apiErr *openaigo.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%s completion: %w: %w", kind, ErrCredentials, err)
		}
		return "", fmt.Errorf("%s completion: %w", kind, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion: no choices returned", kind)
	}
	return resp.Choices[0].Message.Content, nil
}
