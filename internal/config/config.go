package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

// DefaultOutputFile is where the generated script lands when nothing else is configured.
const DefaultOutputFile = "videogame_dashboard.py"

// Syntax check policies applied to generated code.
const (
	SyntaxCheckOff  = "off"
	SyntaxCheckWarn = "warn"
	SyntaxCheckFail = "fail"
)

type Config struct {
	AI          AIConfig          `yaml:"ai"`
	Output      OutputConfig      `yaml:"output"`
	Validation  ValidationConfig  `yaml:"validation"`
	Security    SecurityConfig    `yaml:"security"`
	History     HistoryConfig     `yaml:"history"`
	PromptBuild PromptBuildConfig `yaml:"promptbuild"`
	Logging     LoggingConfig     `yaml:"logging"`

	// path is the file the config was read from, empty for defaults.
	path string
}

// AIConfig selects the model and carries the credential. Model and Provider
// name entries of the model registry; an unknown model name is sent verbatim
// to the selected provider.
type AIConfig struct {
	Provider    string        `yaml:"provider,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	BaseURL     string        `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model       string        `yaml:"model,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty" validate:"gte=0"`
	Temperature float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	// ContextRows bounds how many sample rows of the dataset accompany the prompt.
	ContextRows int `yaml:"context_rows" validate:"gte=0,lte=1000"`
	// GeminiAPIKey comes from GEMINI_API_KEY and is sent to Gemini endpoints only.
	GeminiAPIKey string `yaml:"-"`
}

type OutputConfig struct {
	Path      string `yaml:"path" validate:"required"`
	NoClobber bool   `yaml:"no_clobber,omitempty"`
}

type ValidationConfig struct {
	SyntaxCheck string `yaml:"syntax_check" validate:"oneof=off warn fail"`
}

type SecurityConfig struct {
	AllowedPaths []string `yaml:"allowed_paths"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// PromptBuildConfig controls prompt template loading and the prompt audit trail.
type PromptBuildConfig struct {
	RootDir            string `yaml:"root_dir,omitempty"`
	TemplateFile       string `yaml:"template_file,omitempty"`
	AuditEnabled       bool   `yaml:"audit_enabled,omitempty"`
	AuditDir           string `yaml:"audit_dir,omitempty"`
	AuditRetentionDays int    `yaml:"audit_retention_days,omitempty" validate:"gte=0"`
	AuditFilePrefix    string `yaml:"audit_file_prefix,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			MaxTokens:   8192,
			Temperature: 0.2,
			ContextRows: 5,
		},
		Output: OutputConfig{
			Path: DefaultOutputFile,
		},
		Validation: ValidationConfig{
			SyntaxCheck: SyntaxCheckOff,
		},
		Security: SecurityConfig{
			AllowedPaths: []string{},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(ConfigDir(), "history.db"),
		},
		PromptBuild: PromptBuildConfig{
			RootDir:            ".",
			AuditDir:           filepath.Join(ConfigDir(), "prompt-audit"),
			AuditRetentionDays: 7,
			AuditFilePrefix:    "prompt",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".dashgen")
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".dashgen.yaml")
}

// Path returns the file the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory holding registry files next to the config.
func (c *Config) Dir() string {
	if c.path == "" {
		return ConfigDir()
	}
	return filepath.Join(filepath.Dir(c.path), ".dashgen")
}

// LoadFromPath reads a YAML config on top of DefaultConfig. A missing file
// yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.path = path

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
