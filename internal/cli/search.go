package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"visearch/internal/adapter/assets"
	"visearch/internal/adapter/pixels"
	"visearch/internal/domain"
)

var (
	searchLimitFlag int
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Rank the catalog against a photo",
	Long: `Crop the center of the photo, embed it, and list the most similar products.

Examples:
  visearch search shelf.jpg
  visearch search shelf.jpg -k 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimitFlag, "limit", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

// SearchResult is a ranked match with its resolved display image.
type SearchResult struct {
	Code    string  `json:"code"`
	Score   float64 `json:"score"`
	Percent int     `json:"percent"`
	Image   string  `json:"image,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, cancel := commandContext(cmd)
	defer cancel()

	frame, err := pixels.DecodeFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	pipeline, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Dispose()

	matches, err := pipeline.Search(ctx, frame, searchLimit(searchLimitFlag))
	if err != nil {
		return err
	}

	results := withImages(ctx, matches)

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No matches found.")
		return nil
	}
	fmt.Printf("Top %d matches for: %s\n\n", len(results), args[0])
	for i, r := range results {
		fmt.Printf("%3d. %-20s %3d%%  (%.4f)", i+1, r.Code, r.Percent, r.Score)
		if r.Image != "" {
			fmt.Printf("  %s", r.Image)
		}
		fmt.Println()
	}
	return nil
}

// withImages attaches display images when an asset root is configured.
func withImages(ctx context.Context, matches []domain.MatchResult) []SearchResult {
	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{Code: m.Code, Score: m.Score, Percent: m.Percent()}
	}

	resolver := newResolver()
	if resolver == nil {
		return results
	}
	for i := range results {
		if p, err := resolver.Resolve(ctx, results[i].Code); err == nil {
			results[i].Image = p
		}
	}
	return results
}

func newResolver() *assets.Resolver {
	cfg := GetConfig()
	if cfg.Assets.Root == "" {
		return nil
	}
	if info, err := os.Stat(cfg.Assets.Root); err != nil || !info.IsDir() {
		return nil
	}
	priority, err := assets.ParsePriority(cfg.Assets.Priority)
	if err != nil {
		logger.Warn("invalid asset priority", "priority", cfg.Assets.Priority, "error", err)
		priority = assets.PriorityJPG
	}
	resolver, err := assets.NewResolver(cfg.Assets.Root, priority, cfg.Assets.CacheSize)
	if err != nil {
		return nil
	}
	return resolver
}
