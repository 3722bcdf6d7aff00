package ai

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kayz/dashgen/internal/config"
)

// Provider wire types understood by the agent package.
const (
	TypeOpenAI    = "openai"
	TypeAnthropic = "anthropic"
	TypeGemini    = "gemini"
	TypeOllama    = "ollama"
)

// NeedsKey reports whether providers of type t require an API key. Local
// ollama servers do not.
func NeedsKey(t string) bool {
	return t != TypeOllama
}

const (
	geminiHost          = "generativelanguage.googleapis.com"
	geminiOpenAIBaseURL = "https://" + geminiHost + "/v1beta/openai/"
)

// IsGeminiEndpoint reports whether sel talks to Google's Gemini API, either
// natively or through its OpenAI-compatible endpoint.
func IsGeminiEndpoint(sel Selection) bool {
	if sel.BaseURL == "" {
		return sel.ProviderType == TypeGemini
	}
	u, err := url.Parse(sel.BaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), geminiHost)
}

var (
	// ErrCredentialMissing means no API key was found for the selected provider.
	ErrCredentialMissing = errors.New("API credential not configured")
	ErrUnknownProvider   = errors.New("unknown provider")
)

func ProvidersPath(dir string) string {
	return filepath.Join(dir, "providers.yaml")
}

func ModelsPath(dir string) string {
	return filepath.Join(dir, "models.yaml")
}

type ProviderConfig struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	BaseURL string   `yaml:"base_url,omitempty"`
	APIKey  string   `yaml:"api_key,omitempty"`
	APIKeys []string `yaml:"api_keys,omitempty"`
}

// Keys returns the configured keys with blanks dropped, APIKey first.
func (p *ProviderConfig) Keys() []string {
	var keys []string
	if k := strings.TrimSpace(p.APIKey); k != "" {
		keys = append(keys, k)
	}
	for _, k := range p.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type ModelConfig struct {
	Name        string `yaml:"name"`
	Code        string `yaml:"code"`
	Provider    string `yaml:"provider"`
	Description string `yaml:"description,omitempty"`
}

type Registry struct {
	providers  map[string]*ProviderConfig
	models     map[string]*ModelConfig
	modelOrder []string
}

type providersFile struct {
	Providers []*ProviderConfig `yaml:"providers"`
}

type modelsFile struct {
	Models []*ModelConfig `yaml:"models"`
}

// DefaultRegistry holds the built-in providers and models. The first model
// is the default: Gemini Flash through Google's OpenAI-compatible endpoint.
func DefaultRegistry() *Registry {
	r := newRegistry()
	r.addProvider(&ProviderConfig{Name: "gemini-openai", Type: TypeOpenAI, BaseURL: geminiOpenAIBaseURL})
	r.addProvider(&ProviderConfig{Name: "gemini", Type: TypeGemini})
	r.addProvider(&ProviderConfig{Name: "openai", Type: TypeOpenAI, BaseURL: "https://api.openai.com/v1"})
	r.addProvider(&ProviderConfig{Name: "anthropic", Type: TypeAnthropic})
	r.addProvider(&ProviderConfig{Name: "ollama", Type: TypeOllama, BaseURL: "http://127.0.0.1:11434"})

	r.addModel(&ModelConfig{Name: "gemini-2.0-flash", Code: "models/gemini-2.0-flash", Provider: "gemini-openai",
		Description: "Gemini 2.0 Flash via the OpenAI-compatible endpoint"})
	r.addModel(&ModelConfig{Name: "gemini-native", Code: "gemini-2.0-flash", Provider: "gemini",
		Description: "Gemini 2.0 Flash via the native Gemini API"})
	r.addModel(&ModelConfig{Name: "gpt-4o", Code: "gpt-4o", Provider: "openai"})
	r.addModel(&ModelConfig{Name: "claude-sonnet", Code: "claude-3-5-sonnet-latest", Provider: "anthropic"})
	r.addModel(&ModelConfig{Name: "qwen-coder-local", Code: "qwen2.5-coder:7b", Provider: "ollama",
		Description: "Local model served by ollama"})
	return r
}

func newRegistry() *Registry {
	return &Registry{
		providers:  make(map[string]*ProviderConfig),
		models:     make(map[string]*ModelConfig),
		modelOrder: make([]string, 0),
	}
}

func (r *Registry) addProvider(p *ProviderConfig) {
	r.providers[p.Name] = p
}

// addModel keeps first-seen order; a redefinition replaces the entry in place.
func (r *Registry) addModel(m *ModelConfig) {
	if _, exists := r.models[m.Name]; !exists {
		r.modelOrder = append(r.modelOrder, m.Name)
	}
	r.models[m.Name] = m
}

// LoadRegistry merges providers.yaml and models.yaml from dir over the
// built-in defaults. Missing files are skipped. Models from models.yaml are
// placed ahead of the built-ins so its first entry becomes the default.
func LoadRegistry(dir string) (*Registry, error) {
	r := DefaultRegistry()

	providersData, err := os.ReadFile(ProvidersPath(dir))
	switch {
	case err == nil:
		var pf providersFile
		if err := yaml.Unmarshal(providersData, &pf); err != nil {
			return nil, fmt.Errorf("failed to parse providers.yaml: %w", err)
		}
		for _, p := range pf.Providers {
			if p == nil || strings.TrimSpace(p.Name) == "" {
				return nil, fmt.Errorf("providers.yaml: provider without name")
			}
			r.addProvider(p)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read providers.yaml: %w", err)
	}

	modelsData, err := os.ReadFile(ModelsPath(dir))
	switch {
	case err == nil:
		var mf modelsFile
		if err := yaml.Unmarshal(modelsData, &mf); err != nil {
			return nil, fmt.Errorf("failed to parse models.yaml: %w", err)
		}
		builtin := r.modelOrder
		r.modelOrder = make([]string, 0, len(builtin)+len(mf.Models))
		for _, m := range mf.Models {
			if m == nil || strings.TrimSpace(m.Name) == "" {
				return nil, fmt.Errorf("models.yaml: model without name")
			}
			if !r.contains(m.Name) {
				r.modelOrder = append(r.modelOrder, m.Name)
			}
			r.models[m.Name] = m
		}
		for _, name := range builtin {
			if !r.contains(name) {
				r.modelOrder = append(r.modelOrder, name)
			}
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read models.yaml: %w", err)
	}

	return r, nil
}

func (r *Registry) contains(name string) bool {
	for _, n := range r.modelOrder {
		if n == name {
			return true
		}
	}
	return false
}

func (r *Registry) GetProvider(name string) (*ProviderConfig, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) GetModel(name string) (*ModelConfig, bool) {
	m, ok := r.models[name]
	return m, ok
}

func (r *Registry) ListModels() []*ModelConfig {
	models := make([]*ModelConfig, 0, len(r.modelOrder))
	for _, name := range r.modelOrder {
		if m, ok := r.models[name]; ok {
			models = append(models, m)
		}
	}
	return models
}

func (r *Registry) GetDefaultModel() *ModelConfig {
	for _, name := range r.modelOrder {
		if m, ok := r.models[name]; ok {
			return m
		}
	}
	return nil
}

// Selection is a fully resolved provider endpoint plus model code.
type Selection struct {
	ModelName    string
	ModelCode    string
	ProviderName string
	ProviderType string
	BaseURL      string
	APIKey       string
}

// Resolve picks the model and provider for cfg. Explicit config values
// (provider, base URL, key) win over registry entries.
func (r *Registry) Resolve(cfg config.AIConfig) (Selection, error) {
	var model *ModelConfig
	name := strings.TrimSpace(cfg.Model)
	switch {
	case name == "":
		model = r.GetDefaultModel()
		if model == nil {
			return Selection{}, fmt.Errorf("no models registered")
		}
	default:
		if m, ok := r.GetModel(name); ok {
			model = m
		} else {
			// unregistered names go to the chosen (or default) provider as-is
			providerName := strings.TrimSpace(cfg.Provider)
			if providerName == "" {
				if def := r.GetDefaultModel(); def != nil {
					providerName = def.Provider
				}
			}
			model = &ModelConfig{Name: name, Code: name, Provider: providerName}
		}
	}

	providerName := strings.TrimSpace(cfg.Provider)
	if providerName == "" {
		providerName = model.Provider
	}
	provider, ok := r.GetProvider(providerName)
	if !ok {
		return Selection{}, fmt.Errorf("%w: %q (model %s)", ErrUnknownProvider, providerName, model.Name)
	}

	sel := Selection{
		ModelName:    model.Name,
		ModelCode:    model.Code,
		ProviderName: provider.Name,
		ProviderType: provider.Type,
		BaseURL:      provider.BaseURL,
	}
	if sel.ModelCode == "" {
		sel.ModelCode = model.Name
	}
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		sel.BaseURL = u
	}

	gemini := IsGeminiEndpoint(sel)
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		sel.APIKey = strings.TrimSpace(cfg.APIKey)
	case gemini && strings.TrimSpace(cfg.GeminiAPIKey) != "":
		sel.APIKey = strings.TrimSpace(cfg.GeminiAPIKey)
	default:
		if keys := provider.Keys(); len(keys) > 0 {
			sel.APIKey = keys[0]
		}
	}
	if sel.APIKey == "" && NeedsKey(sel.ProviderType) {
		hint := config.EnvAPIKey
		if gemini {
			hint += " or " + config.EnvGeminiKey
		}
		return Selection{}, fmt.Errorf("%w for provider %s (set %s, ai.api_key or the provider's api_key)",
			ErrCredentialMissing, provider.Name, hint)
	}

	return sel, nil
}
