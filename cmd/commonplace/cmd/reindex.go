package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	var optimize bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text indices from metadata",
		Long: `Reindex drops and refills the full-text mirror tables from the
metadata tables. Use it after suspected index corruption or a bulk
import that bypassed the engine.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd, optimize)
		},
	}

	cmd.Flags().BoolVar(&optimize, "optimize", false, "Also run index maintenance after rebuilding")

	return cmd
}

func runReindex(cmd *cobra.Command, optimize bool) error {
	ctx := cmd.Context()
	orch, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Rebuild(ctx); err != nil {
		return err
	}
	if optimize {
		if err := orch.Optimize(ctx); err != nil {
			return err
		}
	}

	st, err := orch.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt indices for %d documents and %d chunks.\n",
		st.Documents, st.Chunks)
	return nil
}
