package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/logger"
)

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
	name   string
	opts   Options
}

func NewAnthropicGenerator(sel ai.Selection, opts Options) (*AnthropicGenerator, error) {
	if sel.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if sel.ModelCode == "" {
		return nil, fmt.Errorf("model is required")
	}

	var clientOpts []anthropic.ClientOption
	if sel.BaseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(strings.TrimRight(sel.BaseURL, "/")))
	}

	return &AnthropicGenerator{
		client: anthropic.NewClient(sel.APIKey, clientOpts...),
		model:  sel.ModelCode,
		name:   displayName(sel),
		opts:   opts,
	}, nil
}

func (g *AnthropicGenerator) Name() string {
	return g.name
}

// Generate sends one user turn holding the prompt and, when configured, the
// dataset sample as a second text block. Text blocks of the reply are joined.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, table *dataset.Table) (string, error) {
	content := []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)}
	if extra := datasetContext(table, g.opts.ContextRows); extra != "" {
		content = append(content, anthropic.NewTextMessageContent(extra))
	}

	temperature := g.opts.Temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(g.model),
		System:      g.opts.SystemPrompt,
		MaxTokens:   g.opts.maxTokens(),
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
	}

	resp, err := g.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", g.name, err)
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText && c.Text != nil {
			b.WriteString(*c.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}

	logger.Debug("[%s] stop=%s input_tokens=%d output_tokens=%d",
		g.name, resp.StopReason, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	if resp.StopReason == anthropic.MessagesStopReasonMaxTokens {
		logger.Warn("[%s] response hit the token limit (%d), the script may be truncated", g.name, req.MaxTokens)
	}
	return b.String(), nil
}
