package service

import (
	"context"
	"fmt"
	"strings"

	"deep-research/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// TextGenerator is the LLM capability the research pipeline depends on.
// Implementations must make exactly one provider call per invocation.
type TextGenerator interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string, flush func(string) error) (string, error)
}

// LLMService talks to an OpenAI-compatible chat completions endpoint.
type LLMService struct {
	client *openai.Client
	model  string
}

func NewLLMService(cfg config.OpenAIConfig) *LLMService {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &LLMService{client: &client, model: cfg.Model}
}

func (s *LLMService) params(system, user string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
}

func (s *LLMService) Complete(ctx context.Context, system, user string) (string, error) {
	completion, err := s.client.Chat.Completions.New(ctx, s.params(system, user))
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream sends a streaming completion, invoking flush with each content delta.
// It returns the full accumulated text. A flush error aborts the stream.
func (s *LLMService) Stream(ctx context.Context, system, user string, flush func(string) error) (string, error) {
	stream := s.client.Chat.Completions.NewStreaming(ctx, s.params(system, user))

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		if flush != nil {
			if err := flush(token); err != nil {
				return "", fmt.Errorf("stream flush: %w", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("llm stream: %w", err)
	}
	return full.String(), nil
}

// extractJSON pulls a JSON object out of an LLM reply that may wrap it in
// ```json fences or surrounding prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	return strings.TrimSpace(s)
}
