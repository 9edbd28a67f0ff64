package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"visearch/internal/adapter/assets"
)

var (
	assetsRoot string
	assetsJSON bool
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Inspect reference display images",
}

var assetsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every product code has a display image",
	Long: `Walk the asset directory and report codes with no image and images no code uses.

Examples:
  visearch assets verify
  visearch assets verify --root public/images --json`,
	Args: cobra.NoArgs,
	RunE: runAssetsVerify,
}

func init() {
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.AddCommand(assetsVerifyCmd)
	assetsVerifyCmd.Flags().StringVar(&assetsRoot, "root", "", "asset directory (default from config)")
	assetsVerifyCmd.Flags().BoolVar(&assetsJSON, "json", false, "output as JSON")
}

func runAssetsVerify(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, cancel := commandContext(cmd)
	defer cancel()

	root := cfg.Assets.Root
	if assetsRoot != "" {
		root = assetsRoot
	}
	priority, err := assets.ParsePriority(cfg.Assets.Priority)
	if err != nil {
		return err
	}

	pipeline, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Dispose()

	report, err := pipeline.VerifyAssets(ctx, root, priority, cfg.Assets.Excludes)
	if err != nil {
		return err
	}

	if assetsJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Assets root:  %s\n", root)
	fmt.Printf("Files:        %d\n", report.Scanned)
	fmt.Printf("Resolved:     %d\n", len(report.Resolved))
	fmt.Printf("Missing:      %d\n", len(report.Missing))
	fmt.Printf("Unused:       %d\n", len(report.Orphans))

	if len(report.Missing) > 0 {
		fmt.Printf("\nCodes without an image:\n")
		for _, c := range report.Missing {
			fmt.Printf("  - %s\n", c)
		}
	}
	if len(report.Orphans) > 0 {
		fmt.Printf("\nImages no code resolves to:\n")
		for _, p := range report.Orphans {
			fmt.Printf("  - %s\n", p)
		}
	}
	if len(report.Missing) > 0 {
		return fmt.Errorf("%d codes have no display image", len(report.Missing))
	}
	return nil
}
