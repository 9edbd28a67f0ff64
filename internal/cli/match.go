package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	matchLimitFlag int
	matchJSON      bool
)

var matchCmd = &cobra.Command{
	Use:   "match <pattern>...",
	Short: "Search with every image matched by glob patterns",
	Long: `Run a search for each image file matched by the patterns and report the best
match per file. Patterns support ** for recursive matching.

Examples:
  visearch match 'photos/**/*.jpg'
  visearch match shelf1.png shelf2.png -k 3 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().IntVarP(&matchLimitFlag, "limit", "k", 1, "matches per file")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output as JSON")
}

func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, cancel := commandContext(cmd)
	defer cancel()

	paths, err := expandPatterns(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files match %v", args)
	}

	pipeline, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Dispose()

	if err := pipeline.Init(ctx); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !matchJSON {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Matching[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	start := time.Now()
	matches, err := pipeline.MatchFiles(ctx, paths, searchLimit(matchLimitFlag), func(done, total int) {
		if bar != nil {
			bar.Set(done)
		}
	})
	if err != nil {
		return err
	}

	if matchJSON {
		output, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	failed := 0
	fmt.Println()
	for _, m := range matches {
		switch {
		case m.Err != nil:
			failed++
			fmt.Printf("  %-40s  error: %s\n", m.Path, userMessage(m.Err))
		case len(m.Results) == 0:
			fmt.Printf("  %-40s  no match\n", m.Path)
		default:
			top := m.Results[0]
			fmt.Printf("  %-40s  %-20s %3d%%\n", m.Path, top.Code, top.Percent())
		}
	}
	fmt.Printf("\nMatched %d files in %s (%d failed)\n", len(matches), formatDuration(time.Since(start)), failed)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
