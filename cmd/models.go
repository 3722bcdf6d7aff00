package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/kayz/dashgen/internal/ai"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models known to the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		active := cfg.AI.Model
		if def := reg.GetDefaultModel(); active == "" && def != nil {
			active = def.Name
		}

		printModels(cmd, reg, active)
		return nil
	},
}

func printModels(cmd *cobra.Command, reg *ai.Registry, active string) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tPROVIDER\tCODE\tDESCRIPTION")
	for _, m := range reg.ListModels() {
		mark := ""
		if m.Name == active {
			mark = "*"
		}
		provider := m.Provider
		if p, ok := reg.GetProvider(m.Provider); ok {
			provider = fmt.Sprintf("%s (%s)", p.Name, p.Type)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, m.Name, provider, m.Code, m.Description)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
