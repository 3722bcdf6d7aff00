package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/logger"
)

// OpenAICompatGenerator talks to any OpenAI-compatible chat completions API.
// This covers OpenAI itself and Gemini's OpenAI endpoint.
type OpenAICompatGenerator struct {
	client *openai.Client
	model  string
	name   string
	opts   Options
}

// NewOpenAICompatGenerator creates a new OpenAI-compatible generator
func NewOpenAICompatGenerator(sel ai.Selection, opts Options) (*OpenAICompatGenerator, error) {
	if sel.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if sel.ModelCode == "" {
		return nil, fmt.Errorf("model is required")
	}

	config := openai.DefaultConfig(sel.APIKey)
	if sel.BaseURL != "" {
		config.BaseURL = strings.TrimRight(sel.BaseURL, "/")
	}

	return &OpenAICompatGenerator{
		client: openai.NewClientWithConfig(config),
		model:  sel.ModelCode,
		name:   displayName(sel),
		opts:   opts,
	}, nil
}

// Name returns the provider/model pair
func (g *OpenAICompatGenerator) Name() string {
	return g.name
}

// Generate sends the prompt and returns the first choice's content
func (g *OpenAICompatGenerator) Generate(ctx context.Context, prompt string, table *dataset.Table) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 3)

	if g.opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	if extra := datasetContext(table, g.opts.ContextRows); extra != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: extra,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.opts.maxTokens(),
		Temperature: g.opts.Temperature,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", g.name, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	choice := resp.Choices[0]
	logger.Debug("[%s] finish=%s prompt_tokens=%d completion_tokens=%d",
		g.name, choice.FinishReason, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if choice.FinishReason == openai.FinishReasonLength {
		logger.Warn("[%s] response hit the token limit (%d), the script may be truncated", g.name, req.MaxTokens)
	}
	return choice.Message.Content, nil
}
