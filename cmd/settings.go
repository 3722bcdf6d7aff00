package cmd

import (
	"fmt"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/debug"
	"github.com/kayz/dashgen/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// loadSettings builds the effective config. Precedence, highest first:
// command line flags, environment (then .env), config file, defaults.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dotenv, err := config.LoadDotEnv(dotEnvPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dotEnvPath, err)
	}
	cfg.ApplyEnv(config.EnvLookup(dotenv))
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}); err != nil {
		return nil, err
	}
	if debug.Enabled && logger.GetLevel() > zapcore.DebugLevel {
		logger.SetLevel(zapcore.DebugLevel)
	}

	source := cfg.Path()
	if source == "" {
		source = "defaults"
	}
	debug.Log("config from %s, %d dotenv keys, output %s", source, len(dotenv), cfg.Output.Path)
	return cfg, nil
}

// applyFlags copies explicitly set flags onto cfg. Unset flags never
// override file or environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	str := func(name string) (string, bool) {
		if !flags.Changed(name) {
			return "", false
		}
		return flags.Lookup(name).Value.String(), true
	}

	if v, ok := str("output"); ok {
		cfg.Output.Path = v
	}
	if v, ok := str("model"); ok {
		cfg.AI.Model = v
	}
	if v, ok := str("provider"); ok {
		cfg.AI.Provider = v
	}
	if v, ok := str("syntax-check"); ok {
		cfg.Validation.SyntaxCheck = v
	}
	if v, ok := str("log"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := str("log-file"); ok {
		cfg.Logging.File = v
	}
	if flags.Changed("no-clobber") {
		if v, err := flags.GetBool("no-clobber"); err == nil {
			cfg.Output.NoClobber = v
		}
	}
}

// loadRegistry reads providers.yaml and models.yaml next to the config.
func loadRegistry(cfg *config.Config) (*ai.Registry, error) {
	reg, err := ai.LoadRegistry(cfg.Dir())
	if err != nil {
		return nil, fmt.Errorf("load model registry: %w", err)
	}
	return reg, nil
}
