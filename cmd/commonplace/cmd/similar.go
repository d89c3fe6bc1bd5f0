package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSimilarCmd() *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "similar <document-id>",
		Short: "Find entries related to a document",
		Long: `Similar surfaces related entries: first other documents by the same
author, then keyword matches extracted from the document's text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilar(cmd, args[0], limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSimilar(cmd *cobra.Command, id string, limit int, jsonOutput bool) error {
	ctx := cmd.Context()
	orch, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()

	results, err := orch.FindSimilar(ctx, id, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No related entries.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%2d. %s (%s)\n    %s\n", i+1, r.DocumentID, r.MatchType, r.Snippet)
	}
	return nil
}
