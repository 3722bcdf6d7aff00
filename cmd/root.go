package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/debug"
	"github.com/kayz/dashgen/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel     string
	logFile      string
	configPath   string
	dotEnvPath   string
	outputPath   string
	modelName    string
	providerName string
	syntaxCheck  string
	noClobber    bool
)

var rootCmd = &cobra.Command{
	Use:   "dashgen <dataset.csv> <requirements>",
	Short: "Generate a Plotly Dash dashboard script from a CSV file",
	Long: `dashgen asks a language model to write a runnable Dash application for a
CSV dataset, checks the reply and saves it as a Python script.

Examples:
  dashgen sales.csv "show sales over time by region"
  dashgen --model gpt-4o --output dash_app.py games.csv "top genres per year"
  dashgen prompt sales.csv "show sales over time"`,
	Args: cobra.ExactArgs(2),
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGenerate,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		if debug.Enabled && level > zapcore.DebugLevel {
			level = zapcore.DebugLevel
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal, panic")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Also write JSON logs to this file (rotated)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: .dashgen.yaml next to the executable)")
	rootCmd.PersistentFlags().StringVar(&dotEnvPath, "env-file", ".env",
		"Read credentials from this dotenv file when present")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "",
		"Model name from the registry, or a raw model code")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "",
		"Provider name from the registry")

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultOutputFile,
		"Where to write the generated script")
	rootCmd.Flags().StringVar(&syntaxCheck, "syntax-check", config.SyntaxCheckOff,
		"Syntax check policy for generated code: off, warn, fail")
	rootCmd.Flags().BoolVar(&noClobber, "no-clobber", false,
		"Refuse to overwrite an existing output file")
}

// Execute runs the CLI and exits non-zero on any failure. SIGINT and SIGTERM
// cancel an in-flight generation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
