package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/commonplacehq/commonplace/internal/search"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var minRelevance float64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed quotes and notes",
		Long: `Search runs a ranked full-text query. Terms are prefix-matched and
AND-combined; author matches are merged in at a fixed high relevance.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), limit, minRelevance, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum results")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "Drop results below this score (0-100)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int, minRelevance float64, jsonOutput bool) error {
	ctx := cmd.Context()
	orch, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()

	results, err := orch.Search(ctx, query, search.Options{
		Limit:        limit,
		MinRelevance: minRelevance,
	})
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
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range results {
		author := r.Author
		if author == "" {
			author = "(unattributed)"
		}
		fmt.Fprintf(out, "%2d. [%5.1f] %s (%s)\n    %s\n",
			i+1, r.Relevance, author, r.MatchType, r.Snippet)
	}
	return nil
}
