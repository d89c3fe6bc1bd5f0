package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Stats reports document, chunk, and search counts plus storage usage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// statsOutput is the JSON output format for index statistics.
type statsOutput struct {
	Documents     int   `json:"documents"`
	Chunks        int   `json:"chunks"`
	Searches      int   `json:"searches"`
	SchemaVersion int   `json:"schema_version"`
	StorageBytes  int64 `json:"storage_bytes"`
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	orch, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer orch.Close()

	st, err := orch.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statsOutput{
			Documents:     st.Documents,
			Chunks:        st.Chunks,
			Searches:      st.Searches,
			SchemaVersion: st.SchemaVersion,
			StorageBytes:  st.StorageBytes,
		})
	}

	fmt.Fprintf(out, "Documents:      %d\n", st.Documents)
	fmt.Fprintf(out, "Chunks:         %d\n", st.Chunks)
	fmt.Fprintf(out, "Searches:       %d\n", st.Searches)
	fmt.Fprintf(out, "Schema version: %d\n", st.SchemaVersion)
	fmt.Fprintf(out, "Storage:        %s\n", humanBytes(st.StorageBytes))
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
