package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted by ApplyEnv. DASHGEN_API_KEY applies to any
// provider; GEMINI_API_KEY is only ever sent to Google's Gemini endpoints.
const (
	EnvAPIKey    = "DASHGEN_API_KEY"
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvModel     = "DASHGEN_MODEL"
	EnvProvider  = "DASHGEN_PROVIDER"
	EnvBaseURL   = "DASHGEN_BASE_URL"
	EnvOutput    = "DASHGEN_OUTPUT"
	EnvLogLevel  = "DASHGEN_LOG_LEVEL"
)

// LookupFunc resolves one variable, reporting whether it is set.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides config values from lookup. Empty values are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		return
	}
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get(EnvAPIKey); v != "" {
		c.AI.APIKey = v
	}
	if v := get(EnvGeminiKey); v != "" {
		c.AI.GeminiAPIKey = v
	}
	if v := get(EnvModel); v != "" {
		c.AI.Model = v
	}
	if v := get(EnvProvider); v != "" {
		c.AI.Provider = v
	}
	if v := get(EnvBaseURL); v != "" {
		c.AI.BaseURL = v
	}
	if v := get(EnvOutput); v != "" {
		c.Output.Path = v
	}
	if v := get(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// EnvLookup checks the process environment first, then the values read from
// a .env file. A blank process variable counts as unset.
func EnvLookup(dotenv map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// LoadDotEnv reads KEY=VALUE pairs from a .env file. A missing file yields
// an empty map. The process environment is never modified.
func LoadDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}
