package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	refsCodes bool
	refsJSON  bool
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Load and describe the reference dataset",
	Long: `Fetch the reference embeddings from the configured source and report their shape.

Examples:
  visearch refs
  visearch refs --codes`,
	Args: cobra.NoArgs,
	RunE: runRefs,
}

func init() {
	rootCmd.AddCommand(refsCmd)
	refsCmd.Flags().BoolVar(&refsCodes, "codes", false, "list every product code")
	refsCmd.Flags().BoolVar(&refsJSON, "json", false, "output as JSON")
}

func runRefs(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, cancel := commandContext(cmd)
	defer cancel()

	pipeline, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Dispose()

	start := time.Now()
	set, err := pipeline.References().EnsureLoaded(ctx)
	if err != nil {
		return err
	}
	stats := set.Stats()

	if refsJSON {
		out := struct {
			Source     string   `json:"source"`
			Records    int      `json:"records"`
			Dimension  int      `json:"dimension"`
			Duplicates []string `json:"duplicates,omitempty"`
			Codes      []string `json:"codes,omitempty"`
		}{
			Source:     cfg.References.Source,
			Records:    stats.Records,
			Dimension:  stats.Dimension,
			Duplicates: stats.Duplicates,
		}
		if refsCodes {
			out.Codes = set.Codes()
		}
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Source:     %s\n", cfg.References.Source)
	fmt.Printf("Records:    %d\n", stats.Records)
	fmt.Printf("Dimension:  %d\n", stats.Dimension)
	fmt.Printf("Loaded in:  %s\n", formatDuration(time.Since(start)))
	if len(stats.Duplicates) > 0 {
		fmt.Printf("\nDuplicate codes (first occurrence is used for lookups):\n")
		for _, c := range stats.Duplicates {
			fmt.Printf("  - %s\n", c)
		}
	}
	if refsCodes {
		fmt.Println()
		for _, c := range set.Codes() {
			fmt.Println(c)
		}
	}
	return nil
}
