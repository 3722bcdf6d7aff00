package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/logger"
)

// GeminiGenerator uses the native Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	name   string
	opts   Options
}

func NewGeminiGenerator(sel ai.Selection, opts Options) (*GeminiGenerator, error) {
	if sel.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if sel.ModelCode == "" {
		return nil, fmt.Errorf("model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  sel.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if sel.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: sel.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  sel.ModelCode,
		name:   displayName(sel),
		opts:   opts,
	}, nil
}

func (g *GeminiGenerator) Name() string {
	return g.name
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, table *dataset.Table) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if extra := datasetContext(table, g.opts.ContextRows); extra != "" {
		parts = append(parts, genai.NewPartFromText(extra))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.opts.Temperature),
		MaxOutputTokens: int32(g.opts.maxTokens()),
	}
	if g.opts.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(g.opts.SystemPrompt, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", g.name, err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	if resp.UsageMetadata != nil {
		logger.Debug("[%s] prompt_tokens=%d candidate_tokens=%d",
			g.name, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		logger.Warn("[%s] response hit the token limit (%d), the script may be truncated", g.name, gc.MaxOutputTokens)
	}
	return text, nil
}
