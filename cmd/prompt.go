package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kayz/dashgen/internal/agent"
	"github.com/kayz/dashgen/internal/dataset"
	"github.com/kayz/dashgen/internal/logger"
	"github.com/kayz/dashgen/internal/promptbuild"
	"github.com/spf13/cobra"
)

var (
	promptSavePath    string
	promptWithContext bool
	promptRecord      bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt <dataset.csv> <requirements>",
	Short: "Print the prompt that would be sent, without calling a model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		composer, err := promptbuild.NewComposer(cfg.PromptBuild)
		if err != nil {
			return err
		}

		req := promptbuild.Request{DatasetPath: args[0], Requirements: args[1]}
		prompt, err := composer.Compose(req.Requirements, req.DatasetPath)
		if err != nil {
			return err
		}

		out := prompt.Text
		if promptWithContext {
			table, err := dataset.Preflight(req.DatasetPath)
			if err != nil {
				return err
			}
			out += "\n\n" + table.Summary(cfg.AI.ContextRows)
		}

		if promptSavePath == "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		} else if err := os.WriteFile(promptSavePath, []byte(out), 0644); err != nil {
			return fmt.Errorf("write prompt: %w", err)
		}

		if promptRecord {
			cfg.PromptBuild.AuditEnabled = true
			if err := promptbuild.NewAuditor(cfg.PromptBuild).Record(uuid.NewString(), req, prompt); err != nil {
				logger.Warn("record prompt failed: %v", err)
			}
		}
		logger.Debug("system prompt: %s", agent.DefaultSystemPrompt)
		return nil
	},
}

func init() {
	promptCmd.Flags().StringVar(&promptSavePath, "save", "", "Write the prompt to a file instead of stdout")
	promptCmd.Flags().BoolVar(&promptWithContext, "with-context", false, "Append the dataset sample sent alongside the prompt")
	promptCmd.Flags().BoolVar(&promptRecord, "record", false, "Append the prompt to the audit log")
	rootCmd.AddCommand(promptCmd)
}
