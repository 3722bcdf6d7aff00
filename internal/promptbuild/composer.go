// Package promptbuild turns a dataset path and free-form requirements into the
// instruction text sent to the model.
package promptbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/logger"
)

// TemplateFormattingError reports a placeholder the composer cannot fill, or
// a malformed brace in the template.
type TemplateFormattingError struct {
	Key    string
	Reason string
}

func (e *TemplateFormattingError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("prompt template references unknown key %q", e.Key)
	}
	return "prompt template malformed: " + e.Reason
}

// Request is one generation input. Both fields are required.
type Request struct {
	DatasetPath  string `json:"dataset_path" validate:"required"`
	Requirements string `json:"requirements" validate:"required"`
}

// Prompt is a fully substituted template.
type Prompt struct {
	Text         string
	SafePath     string
	Requirements string
}

// Composer fills a fixed template. It holds no per-call state.
type Composer struct {
	cfg      config.PromptBuildConfig
	template string
}

// NewComposer uses cfg.TemplateFile when set, otherwise DefaultTemplate.
func NewComposer(cfg config.PromptBuildConfig) (*Composer, error) {
	c := &Composer{cfg: cfg, template: DefaultTemplate}
	if strings.TrimSpace(cfg.TemplateFile) == "" {
		return c, nil
	}

	fullPath := c.resolvePath(cfg.TemplateFile)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read prompt template %s: %w", fullPath, err)
	}
	c.template = string(content)
	logger.Debug("Using prompt template %s (%d bytes)", fullPath, len(content))
	return c, nil
}

// NewComposerFromText builds a composer over an in-memory template.
func NewComposerFromText(template string) *Composer {
	return &Composer{template: template}
}

// Compose escapes the dataset path and substitutes both placeholders.
func (c *Composer) Compose(requirements, datasetPath string) (Prompt, error) {
	safePath := EscapePath(datasetPath)
	text, err := Format(c.template, map[string]string{
		KeyDatasetPath:      safePath,
		KeyUserRequirements: requirements,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: text, SafePath: safePath, Requirements: requirements}, nil
}

// EscapePath doubles every backslash so the path survives being read back
// as an escaped string literal.
func EscapePath(path string) string {
	return strings.ReplaceAll(path, `\`, `\\`)
}

// UnescapePath reverses EscapePath.
func UnescapePath(escaped string) string {
	return strings.ReplaceAll(escaped, `\\`, `\`)
}

// Format replaces {name} with values[name] in one pass. "{{" and "}}" produce
// literal braces. Substituted values are not rescanned.
func Format(template string, values map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	for i := 0; i < len(template); i++ {
		ch := template[i]
		switch ch {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", &TemplateFormattingError{Reason: fmt.Sprintf("unclosed '{' at offset %d", i)}
			}
			key := template[i+1 : i+1+end]
			if strings.ContainsAny(key, "{\n") {
				return "", &TemplateFormattingError{Reason: fmt.Sprintf("unclosed '{' at offset %d", i)}
			}
			if key == "" {
				return "", &TemplateFormattingError{Reason: fmt.Sprintf("empty placeholder at offset %d", i)}
			}
			value, ok := values[key]
			if !ok {
				return "", &TemplateFormattingError{Key: key}
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return "", &TemplateFormattingError{Reason: fmt.Sprintf("single '}' at offset %d", i)}
		default:
			out.WriteByte(ch)
		}
	}
	return out.String(), nil
}

func (c *Composer) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	root := c.cfg.RootDir
	if root == "" {
		root = "."
	}
	return filepath.Join(root, p)
}
