// Package agent sends a composed prompt to a language model and returns the
// raw text of its reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/dataset"
)

// DefaultSystemPrompt is sent ahead of every prompt.
const DefaultSystemPrompt = "You write complete, runnable Plotly Dash applications in Python. " +
	"Reply with the code only."

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("model returned no content")

// Generator is a single-shot text generation backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, table *dataset.Table) (string, error)
}

// Options tune a generation request.
type Options struct {
	MaxTokens    int
	Temperature  float32
	ContextRows  int
	SystemPrompt string
}

// OptionsFromConfig maps the ai section of the config onto Options.
func OptionsFromConfig(cfg config.AIConfig) Options {
	return Options{
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		ContextRows:  cfg.ContextRows,
		SystemPrompt: DefaultSystemPrompt,
	}
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 4096
	}
	return o.MaxTokens
}

// New builds the generator for a resolved model selection.
func New(sel ai.Selection, opts Options) (Generator, error) {
	if ai.NeedsKey(sel.ProviderType) && strings.TrimSpace(sel.APIKey) == "" {
		return nil, fmt.Errorf("%w for provider %s", ai.ErrCredentialMissing, sel.ProviderName)
	}
	switch sel.ProviderType {
	case ai.TypeOpenAI, "":
		return NewOpenAICompatGenerator(sel, opts)
	case ai.TypeAnthropic:
		return NewAnthropicGenerator(sel, opts)
	case ai.TypeGemini:
		return NewGeminiGenerator(sel, opts)
	case ai.TypeOllama:
		return NewOllamaGenerator(sel, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported provider type %q", ai.ErrUnknownProvider, sel.ProviderType)
	}
}

// datasetContext renders the table sample appended after the prompt, or ""
// when no sample is wanted.
func datasetContext(table *dataset.Table, rows int) string {
	if table == nil || rows <= 0 {
		return ""
	}
	return "For reference, this is the dataset the script will load:\n\n" + table.Summary(rows)
}

func displayName(sel ai.Selection) string {
	return sel.ProviderName + "/" + sel.ModelCode
}
