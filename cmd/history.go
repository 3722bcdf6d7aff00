package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kayz/dashgen/internal/persist"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent runs, or show one run in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("run history is disabled (history.enabled: false)")
		}
		store, err := persist.NewStore(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			printRun(cmd, run)
			return nil
		}

		runs, err := store.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}
		printRuns(cmd, runs, time.Now())
		return nil
	},
}

func printRuns(cmd *cobra.Command, runs []*persist.RunRecord, now time.Time) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tSTATUS\tMODEL\tDATASET")
	for _, r := range runs {
		status := r.Status
		if r.ErrorKind != "" {
			status += " (" + r.ErrorKind + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, humanize.RelTime(r.StartedAt, now, "ago", "from now"), status, r.Model, r.DatasetPath)
	}
	_ = w.Flush()
}

func printRun(cmd *cobra.Command, r *persist.RunRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:          %s\n", r.ID)
	fmt.Fprintf(out, "Started:      %s (%s)\n", r.StartedAt.Local().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Status:       %s\n", r.Status)
	fmt.Fprintf(out, "Model:        %s/%s\n", r.Provider, r.Model)
	fmt.Fprintf(out, "Dataset:      %s\n", r.DatasetPath)
	fmt.Fprintf(out, "Requirements: %s\n", r.Requirements)
	if r.Succeeded() {
		fmt.Fprintf(out, "Output:       %s (%s)\n", r.OutputPath, humanize.Bytes(uint64(r.OutputBytes)))
	}
	if r.Repaired {
		fmt.Fprintln(out, "Repaired:     main block appended")
	}
	if r.ErrorKind != "" {
		fmt.Fprintf(out, "Error:        %s: %s\n", r.ErrorKind, r.ErrorMessage)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings:     %s\n", strings.Join(r.Warnings, "; "))
	}
	if r.PromptDigest != "" {
		fmt.Fprintf(out, "Prompt:       sha256 %s\n", r.PromptDigest)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	rootCmd.AddCommand(historyCmd)
}
