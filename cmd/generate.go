package cmd

import (
	"fmt"

	"github.com/kayz/dashgen/internal/config"
	"github.com/kayz/dashgen/internal/logger"
	"github.com/kayz/dashgen/internal/persist"
	"github.com/kayz/dashgen/internal/pipeline"
	"github.com/kayz/dashgen/internal/promptbuild"
	"github.com/spf13/cobra"
)

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	gen, err := pipeline.Build(cfg, reg)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if store := openHistory(cfg); store != nil {
		defer store.Close()
		opts = append(opts, pipeline.WithHistory(store))
	}

	p, err := pipeline.New(cfg, gen, opts...)
	if err != nil {
		return err
	}

	res, err := p.Run(cmd.Context(), promptbuild.Request{
		DatasetPath:  args[0],
		Requirements: args[1],
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	note := ""
	if res.Repaired {
		note = " (added missing main block)"
	}
	fmt.Fprintf(out, "Dashboard code saved to %s%s\n", res.OutputPath, note)
	fmt.Fprintf(out, "Run it with: python %s\n", res.OutputPath)
	return nil
}

// openHistory returns nil when history is disabled or unavailable. A broken
// history database never blocks generation.
func openHistory(cfg *config.Config) *persist.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := persist.NewStore(cfg.History.Path)
	if err != nil {
		logger.Warn("Run history disabled: %v", err)
		return nil
	}
	return store
}
