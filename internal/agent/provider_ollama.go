package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/logger"
)

// OllamaGenerator runs against a local ollama server. No API key is needed.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
	name   string
	opts   Options
}

// NewOllamaGenerator uses sel.BaseURL when set, otherwise OLLAMA_HOST.
func NewOllamaGenerator(sel ai.Selection, opts Options) (*OllamaGenerator, error) {
	if sel.ModelCode == "" {
		return nil, fmt.Errorf("model is required")
	}

	var client *ollama.Client
	if sel.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(sel.BaseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base URL %q: %w", sel.BaseURL, err)
		}
		client = ollama.NewClient(base, http.DefaultClient)
	} else {
		var err error
		client, err = ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
	}

	return &OllamaGenerator{
		client: client,
		model:  sel.ModelCode,
		name:   displayName(sel),
		opts:   opts,
	}, nil
}

func (g *OllamaGenerator) Name() string {
	return g.name
}

// Generate makes one non-streaming chat call.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, table *dataset.Table) (string, error) {
	messages := make([]ollama.Message, 0, 3)
	if g.opts.SystemPrompt != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: g.opts.SystemPrompt})
	}
	messages = append(messages, ollama.Message{Role: "user", Content: prompt})
	if extra := datasetContext(table, g.opts.ContextRows); extra != "" {
		messages = append(messages, ollama.Message{Role: "user", Content: extra})
	}

	stream := false
	req := &ollama.ChatRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": g.opts.Temperature,
			"num_predict": g.opts.maxTokens(),
		},
	}

	var b strings.Builder
	var doneReason string
	err := g.client.Chat(ctx, req, func(res ollama.ChatResponse) error {
		b.WriteString(res.Message.Content)
		if res.Done {
			doneReason = res.DoneReason
			logger.Debug("[%s] done=%s prompt_eval=%d eval=%d",
				g.name, res.DoneReason, res.PromptEvalCount, res.EvalCount)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s chat failed: %w", g.name, err)
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	if doneReason == "length" {
		logger.Warn("[%s] response hit the token limit (%d), the script may be truncated", g.name, g.opts.maxTokens())
	}
	return b.String(), nil
}
